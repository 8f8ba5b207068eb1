package kubernetes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"plant-classifier-pipeline/internal/config"
)

func pod(name, ip string, phase corev1.PodPhase, ready bool, labels map[string]string) *corev1.Pod {
	status := corev1.ConditionFalse
	if ready {
		status = corev1.ConditionTrue
	}
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "serving", Labels: labels},
		Status: corev1.PodStatus{
			Phase:      phase,
			PodIP:      ip,
			Conditions: []corev1.PodCondition{{Type: corev1.PodReady, Status: status}},
		},
	}
}

func TestPodDiscovery_Targets(t *testing.T) {
	api := map[string]string{"app": "plant-api"}
	client := fake.NewSimpleClientset(
		pod("api-b", "10.0.0.2", corev1.PodRunning, true, api),
		pod("api-a", "10.0.0.1", corev1.PodRunning, true, api),
		pod("api-starting", "10.0.0.3", corev1.PodRunning, false, api),
		pod("api-pending", "", corev1.PodPending, false, api),
		pod("other", "10.0.0.9", corev1.PodRunning, true, map[string]string{"app": "airflow"}),
	)

	d := NewPodDiscoveryWithClient(client, &config.KubernetesConfig{
		Namespace:     "serving",
		LabelSelector: "app=plant-api",
		ServingPort:   8000,
	})

	targets, err := d.Targets(context.Background())
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "api-a", targets[0].Name)
	assert.Equal(t, "http://10.0.0.1:8000/reload", targets[0].URL)
	assert.Equal(t, "http://10.0.0.2:8000/reload", targets[1].URL)
}

func TestPodDiscovery_EmptyNamespace(t *testing.T) {
	d := NewPodDiscoveryWithClient(fake.NewSimpleClientset(), &config.KubernetesConfig{Namespace: "serving"})

	targets, err := d.Targets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, targets)
}
