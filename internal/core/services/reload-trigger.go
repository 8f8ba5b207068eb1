package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"plant-classifier-pipeline/internal/core/domain"
	ports "plant-classifier-pipeline/internal/core/ports/output"
)

// ReloadTriggerService asks every serving process to reload its model. A
// process that cannot be reached is logged and counted, never fatal.
type ReloadTriggerService struct {
	discovery ports.TargetDiscovery
	client    ports.ReloadClient
}

func NewReloadTriggerService(discovery ports.TargetDiscovery, client ports.ReloadClient) *ReloadTriggerService {
	return &ReloadTriggerService{discovery: discovery, client: client}
}

// Trigger only returns an error when the targets cannot be listed.
func (s *ReloadTriggerService) Trigger(ctx context.Context) (domain.ReloadReport, error) {
	var report domain.ReloadReport

	targets, err := s.discovery.Targets(ctx)
	if err != nil {
		return report, fmt.Errorf("discover serving targets: %w", err)
	}
	report.Targets = len(targets)
	if len(targets) == 0 {
		log.Warn("no serving targets to reload")
		return report, nil
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			err := s.client.Reload(ctx, t)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", t.Name, err))
				log.WithFields(log.Fields{"target": t.Name, "url": t.URL}).WithError(err).Warn("reload request failed")
				return nil
			}
			report.Succeeded++
			log.WithFields(log.Fields{"target": t.Name, "url": t.URL}).Info("model reload requested")
			return nil
		})
	}
	// Failures are counted in the report, never returned.
	_ = g.Wait()
	sort.Strings(report.Errors)
	return report, nil
}
