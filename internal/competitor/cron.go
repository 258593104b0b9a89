package competitor

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper runs one monitoring sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (SweepResult, error)
}

// CronRunner triggers sweeps on a five-field cron schedule. Overlapping
// triggers are skipped so sweeps stay sequential.
type CronRunner struct {
	cron    *cron.Cron
	sweeper Sweeper
	logger  *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entryID cron.EntryID
}

// NewCronRunner validates schedule and registers the sweep.
func NewCronRunner(schedule string, sweeper Sweeper, logger *zap.Logger) (*CronRunner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("parse competitor schedule %q: %w", schedule, err)
	}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	r := &CronRunner{cron: c, sweeper: sweeper, logger: logger, ctx: context.Background()}
	id, err := c.AddFunc(schedule, r.run)
	if err != nil {
		return nil, fmt.Errorf("add competitor sweep: %w", err)
	}
	r.entryID = id
	return r, nil
}

// Start begins scheduling; sweeps use a context derived from ctx.
func (r *CronRunner) Start(ctx context.Context) {
	r.mu.Lock()
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()
	r.cron.Start()
	r.logger.Info("competitor sweep scheduled", zap.Time("next_run", r.cron.Entry(r.entryID).Next))
}

// Stop cancels the sweep context and waits for a running sweep to return.
func (r *CronRunner) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	<-r.cron.Stop().Done()
}

func (r *CronRunner) run() {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()

	res, err := r.sweeper.Sweep(ctx)
	if err != nil {
		r.logger.Error("competitor sweep failed", zap.Error(err))
		return
	}
	r.logger.Info("competitor sweep complete",
		zap.Int("processed", res.Processed),
		zap.Int("events", res.Events),
		zap.Int("errors", res.Errors),
	)
}
