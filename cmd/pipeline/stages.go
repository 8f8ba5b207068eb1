package main

import (
	"fmt"
	"time"

	"plant-classifier-pipeline/internal/adapters/secondary/kubernetes"
	"plant-classifier-pipeline/internal/adapters/secondary/origin"
	"plant-classifier-pipeline/internal/adapters/secondary/servingapi"
	ports "plant-classifier-pipeline/internal/core/ports/output"
	"plant-classifier-pipeline/internal/core/services"
	"plant-classifier-pipeline/internal/manifest"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newRegisterCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register the sources listed in a manifest in the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := manifest.Load(rt.cfg.Catalog.Manifest)
			if err != nil {
				return err
			}
			catalog, closeDB, err := rt.catalog(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			report, err := catalog.RegisterManifest(cmd.Context(), m)
			if err != nil {
				return err
			}
			return printResult(cmd, report)
		},
	}
	cmd.Flags().StringVar(&rt.cfg.Catalog.Manifest, "manifest", rt.cfg.Catalog.Manifest, "source manifest (YAML)")
	return cmd
}

func newSyncCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror every catalog source into the images bucket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, closeDB, err := rt.catalog(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()
			store, err := rt.store()
			if err != nil {
				return err
			}

			sc := rt.cfg.Sync
			svc := services.NewContentSyncService(catalog, store, origin.NewClient(sc.FetchTimeout, sc.MaxBytes), sc.Workers)
			report, err := svc.Sync(cmd.Context(), sc.Bucket)
			if err != nil {
				return err
			}
			return printResult(cmd, report)
		},
	}
	cmd.Flags().StringVar(&rt.cfg.Sync.Bucket, "bucket", rt.cfg.Sync.Bucket, "destination bucket")
	cmd.Flags().IntVar(&rt.cfg.Sync.Workers, "workers", rt.cfg.Sync.Workers, "concurrent fetches")
	return cmd
}

func newHydrateCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hydrate",
		Short: "Download the labeled images into a local training directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			labels, err := rt.labels()
			if err != nil {
				return err
			}
			store, err := rt.store()
			if err != nil {
				return err
			}

			dc := rt.cfg.Dataset
			svc := services.NewDatasetService(store, labels, dc.Workers)
			report, err := svc.Hydrate(cmd.Context(), dc.Bucket, dc.Dir, services.HydrateOptions{
				Clean:      dc.Clean,
				Extensions: dc.Extensions,
			})
			if err != nil {
				return err
			}
			return printResult(cmd, report)
		},
	}
	cmd.Flags().StringVar(&rt.cfg.Dataset.Bucket, "bucket", rt.cfg.Dataset.Bucket, "source bucket")
	cmd.Flags().StringVar(&rt.cfg.Dataset.Dir, "dir", rt.cfg.Dataset.Dir, "destination directory")
	cmd.Flags().BoolVar(&rt.cfg.Dataset.Clean, "clean", rt.cfg.Dataset.Clean, "remove the directory first")
	return cmd
}

func newPublishCmd(rt *runtime) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload a trained model artifact",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := rt.store()
			if err != nil {
				return err
			}

			ac := rt.cfg.Artifact
			if key == "" {
				key = services.VersionedKey(ac.Prefix, ac.Extension, time.Now(), uuid.NewString())
			}
			artifact, err := services.NewArtifactPublisherService(store).Publish(cmd.Context(), ac.Path, ac.Bucket, key)
			if err != nil {
				return err
			}
			return printResult(cmd, artifact)
		},
	}
	cmd.Flags().StringVar(&rt.cfg.Artifact.Path, "file", rt.cfg.Artifact.Path, "local artifact file")
	cmd.Flags().StringVar(&rt.cfg.Artifact.Bucket, "bucket", rt.cfg.Artifact.Bucket, "destination bucket")
	cmd.Flags().StringVar(&key, "key", "", "object key (default: timestamped key)")
	return cmd
}

func newResolveCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the artifact the serving cache would load",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := rt.store()
			if err != nil {
				return err
			}
			sc := rt.cfg.Serving
			artifact, err := services.NewArtifactResolverService(store).ResolveLatest(cmd.Context(), sc.Buckets, sc.Extension)
			if err != nil {
				return err
			}
			return printResult(cmd, artifact)
		},
	}
	cmd.Flags().StringSliceVar(&rt.cfg.Serving.Buckets, "buckets", rt.cfg.Serving.Buckets, "buckets to scan (empty: all)")
	cmd.Flags().StringVar(&rt.cfg.Serving.Extension, "extension", rt.cfg.Serving.Extension, "artifact extension")
	return cmd
}

func newReloadCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Ask every serving replica to load the newest artifact",
		RunE: func(cmd *cobra.Command, _ []string) error {
			discovery, err := reloadTargets(rt)
			if err != nil {
				return err
			}
			svc := services.NewReloadTriggerService(discovery, servingapi.NewClient(rt.cfg.Reload.Timeout))
			report, err := svc.Trigger(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd, report)
		},
	}
}

func reloadTargets(rt *runtime) (ports.TargetDiscovery, error) {
	if !rt.cfg.Kubernetes.Enabled {
		return servingapi.StaticTargets{rt.cfg.Reload.URL}, nil
	}
	d, err := kubernetes.NewPodDiscovery(&rt.cfg.Kubernetes)
	if err != nil {
		return nil, fmt.Errorf("kubernetes discovery: %w", err)
	}
	return d, nil
}
