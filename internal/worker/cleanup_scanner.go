package worker

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fleetgate/fleetgate/internal/domain/cleanup"
	"github.com/fleetgate/fleetgate/internal/domain/resource"
	"github.com/fleetgate/fleetgate/internal/orchestrator"
	"github.com/fleetgate/fleetgate/internal/pkg/logger"
)

// OrphanDetector is the slice of the cleanup orchestrator the scanner
// needs.
type OrphanDetector interface {
	DetectOrphans(ctx context.Context, kind resource.Kind) ([]cleanup.OrphanedResource, error)
}

var _ OrphanDetector = (*orchestrator.Cleaner)(nil)

// ScanReport is one sweep's findings
type ScanReport struct {
	At           time.Time                  `json:"at"`
	Orphans      []cleanup.OrphanedResource `json:"orphans"`
	MonthlyWaste float64                    `json:"monthly_waste"`
}

// CleanupScanner runs scheduled orphan sweeps. It only reports;
// deletion always goes through the interactive cleanup flow.
type CleanupScanner struct {
	detector OrphanDetector
	schedule string
	logger   *logger.Logger

	mu   sync.Mutex
	last *ScanReport
}

// NewCleanupScanner creates a scanner with a cron schedule spec
func NewCleanupScanner(detector OrphanDetector, schedule string, log *logger.Logger) *CleanupScanner {
	return &CleanupScanner{
		detector: detector,
		schedule: schedule,
		logger:   log,
	}
}

// Start runs an initial sweep, then sweeps on the cron schedule until
// the context is cancelled.
func (s *CleanupScanner) Start(ctx context.Context) error {
	s.logger.Infof("Starting cleanup scanner, schedule %q", s.schedule)

	s.scan(ctx)

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.scan(ctx) }); err != nil {
		return err
	}
	c.Start()

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()

	s.logger.Info("Cleanup scanner stopped")
	return nil
}

// LastReport returns the most recent sweep, or nil before the first
// one completes.
func (s *CleanupScanner) LastReport() *ScanReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *CleanupScanner) scan(ctx context.Context) {
	orphans, err := s.detector.DetectOrphans(ctx, resource.KindBastionHost)
	if err != nil {
		s.logger.ErrorWithErr(err, "Orphan sweep failed")
		return
	}

	report := &ScanReport{At: time.Now().UTC(), Orphans: orphans}
	for _, o := range orphans {
		report.MonthlyWaste += o.MonthlyCost
	}

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	if len(orphans) == 0 {
		s.logger.Debug("Orphan sweep found nothing")
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"orphans":       len(orphans),
		"monthly_waste": report.MonthlyWaste,
	}).Warn("Orphan sweep found unused bastion hosts")
	for _, o := range orphans {
		s.logger.Warnf("Orphaned bastion host %s in %s wastes $%.2f/month", o.Name, o.Region, o.MonthlyCost)
	}
}
