package kubernetes

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8s "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"plant-classifier-pipeline/internal/config"
	ports "plant-classifier-pipeline/internal/core/ports/output"
)

// PodDiscovery lists ready serving pods. Every replica keeps its own model
// cache, so a reload has to reach each of them.
type PodDiscovery struct {
	client        k8s.Interface
	namespace     string
	labelSelector string
	port          int
	path          string
}

var _ ports.TargetDiscovery = (*PodDiscovery)(nil)

// NewPodDiscovery builds a clientset from in-cluster config, the configured
// kubeconfig or ~/.kube/config, in that order.
func NewPodDiscovery(cfg *config.KubernetesConfig) (*PodDiscovery, error) {
	var restCfg *rest.Config
	var err error

	if cfg.InCluster {
		restCfg, err = rest.InClusterConfig()
	} else if cfg.KubeConfigPath != "" {
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.KubeConfigPath)
	} else {
		home, _ := os.UserHomeDir()
		restCfg, err = clientcmd.BuildConfigFromFlags("", filepath.Join(home, ".kube", "config"))
	}
	if err != nil {
		return nil, fmt.Errorf("build k8s config: %w", err)
	}

	client, err := k8s.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create clientset: %w", err)
	}
	return NewPodDiscoveryWithClient(client, cfg), nil
}

func NewPodDiscoveryWithClient(client k8s.Interface, cfg *config.KubernetesConfig) *PodDiscovery {
	ns := cfg.Namespace
	if ns == "" {
		ns = "default"
	}
	port := cfg.ServingPort
	if port == 0 {
		port = 8000
	}
	path := cfg.ReloadPath
	if path == "" {
		path = "/reload"
	}
	return &PodDiscovery{
		client:        client,
		namespace:     ns,
		labelSelector: cfg.LabelSelector,
		port:          port,
		path:          path,
	}
}

func (d *PodDiscovery) Targets(ctx context.Context) ([]ports.ReloadTarget, error) {
	pods, err := d.client.CoreV1().Pods(d.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: d.labelSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("list pods in %s: %w", d.namespace, err)
	}

	var targets []ports.ReloadTarget
	for _, pod := range pods.Items {
		if !podReady(&pod) || pod.Status.PodIP == "" {
			continue
		}
		targets = append(targets, ports.ReloadTarget{
			Name: pod.Name,
			URL:  "http://" + net.JoinHostPort(pod.Status.PodIP, strconv.Itoa(d.port)) + d.path,
		})
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Name < targets[j].Name })
	return targets, nil
}

func podReady(pod *corev1.Pod) bool {
	if pod.DeletionTimestamp != nil || pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, c := range pod.Status.Conditions {
		if c.Type == corev1.PodReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}
