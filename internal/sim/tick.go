package sim

import (
	"context"
	"sync"

	"dronefleet/internal/logging"
)

// Run starts the mutation and publish loops and blocks until ctx is done.
// Both loops stop together and every subscriber is closed before Run returns.
func (s *Simulator) Run(ctx context.Context) {
	log := logging.FromContext(ctx)
	log.Info("starting simulator", "cluster_id", s.clusterID, "drones", s.store.Len())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.mutator.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.hub.Run(ctx)
	}()
	wg.Wait()
	log.Info("stopping simulator")
}
