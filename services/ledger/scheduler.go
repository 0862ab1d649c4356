package ledger

import (
	"context"
	"time"

	"marketplace-ledger/pkg/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scheduler runs the clearance sweep on LEDGER_CLEARANCE_SCHEDULE.
type Scheduler struct {
	cron     *cron.Cron
	svc      *Service
	schedule string
}

func NewScheduler(cfg *config.Config, svc *Service) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		svc:      svc,
		schedule: cfg.Ledger.ClearanceSchedule,
	}
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) error {
	if _, err := s.cron.AddFunc(s.schedule, s.runClearance); err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.cron.Start()
			zap.L().Info("[Scheduler] clearance sweep scheduled", zap.String("schedule", s.schedule))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			select {
			case <-s.cron.Stop().Done():
			case <-ctx.Done():
			}
			zap.L().Info("[Scheduler] stopped")
			return nil
		},
	})
	return nil
}

func (s *Scheduler) runClearance() {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n, err := s.svc.ClearDueEarnings(ctx)
	if err != nil {
		zap.L().Error("[Scheduler] clearance sweep failed", zap.Error(err))
		return
	}

	zap.L().Info("[Scheduler] clearance sweep finished",
		zap.Int64("cleared", n),
		zap.Duration("duration", time.Since(start)),
	)
}
