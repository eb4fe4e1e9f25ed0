package replicator

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/fleetgate/fleetgate/internal/domain/resource"
	"github.com/fleetgate/fleetgate/internal/pkg/logger"
)

const (
	defaultWorkers   = 4
	defaultRateLimit = 2 // provisioner calls per second
	defaultBurst     = 4
)

// Unit is one independent resource to provision
type Unit struct {
	Kind   resource.Kind
	Params resource.CreateParams
}

// UnitResult is the per-unit outcome. A unit's failure never affects
// its siblings.
type UnitResult struct {
	Name       string               `json:"name"`
	Kind       resource.Kind        `json:"kind"`
	Descriptor *resource.Descriptor `json:"descriptor,omitempty"`
	Err        error                `json:"-"`
}

// Report aggregates one batch
type Report struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []UnitResult `json:"results"`
}

// Errors collects the per-unit failures
func (r Report) Errors() []error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errs
}

// Replicator provisions a batch of independent resources through a
// bounded worker pool. Provisioner calls are rate limited so a large
// fleet rollout cannot trip the cloud API throttle.
type Replicator struct {
	provisioner resource.Provisioner
	limiter     *rate.Limiter
	workers     int
	logger      *logger.Logger
}

// Option configures a Replicator
type Option func(*Replicator)

// WithWorkers sets the pool size
func WithWorkers(n int) Option {
	return func(r *Replicator) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithRateLimit caps provisioner calls per second
func WithRateLimit(perSecond float64, burst int) Option {
	return func(r *Replicator) {
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// New creates a Replicator
func New(provisioner resource.Provisioner, log *logger.Logger, opts ...Option) *Replicator {
	r := &Replicator{
		provisioner: provisioner,
		limiter:     rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		workers:     defaultWorkers,
		logger:      log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Replicate provisions every unit, continuing past individual failures.
// Results are returned in input order.
func (r *Replicator) Replicate(ctx context.Context, units []Unit) Report {
	results := make([]UnitResult, len(units))
	if len(units) == 0 {
		return Report{Results: results}
	}

	workers := r.workers
	if workers > len(units) {
		workers = len(units)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = r.provision(ctx, units[i])
			}
		}()
	}

	for i := range units {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	report := Report{Results: results}
	for _, res := range results {
		if res.Err != nil {
			report.Failed++
		} else {
			report.Succeeded++
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"total":     len(units),
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	}).Info("Replication batch finished")

	return report
}

func (r *Replicator) provision(ctx context.Context, unit Unit) UnitResult {
	result := UnitResult{Name: unit.Params.Name, Kind: unit.Kind}

	if err := r.limiter.Wait(ctx); err != nil {
		result.Err = err
		return result
	}

	desc, err := r.provisioner.Create(ctx, unit.Kind, unit.Params)
	if err != nil {
		r.logger.WithError(err).Warnf("Failed to provision %s %s", unit.Kind, unit.Params.Name)
		result.Err = err
		return result
	}

	result.Descriptor = desc
	return result
}
