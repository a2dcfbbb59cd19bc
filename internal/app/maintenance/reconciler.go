package maintenance

import (
	"context"
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/wintent/plugin-config/pkg/logger"
)

// BrandingChecker re-applies the brand when the settings row drifted from it.
type BrandingChecker interface {
	EnsureBranding(ctx context.Context, trigger string)
}

// Trigger is the label runs of the reconciler are recorded under.
const Trigger = "reconcile"

// Reconciler periodically re-checks that the Wintent brand is still applied, so an
// administrator replacing the logo gets it back on the next tick.
type Reconciler struct {
	checker  BrandingChecker
	cron     *cron.Cron
	schedule string
	log      *zap.Logger
	started  bool
}

// Option customises the Reconciler.
type Option func(*Reconciler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Reconciler) {
		if c != nil {
			r.cron = c
		}
	}
}

// NewReconciler constructs a Reconciler running on schedule. An empty schedule or nil
// checker yields a reconciler whose Start is a no-op.
func NewReconciler(checker BrandingChecker, schedule string, opts ...Option) *Reconciler {
	r := &Reconciler{
		checker:  checker,
		schedule: strings.TrimSpace(schedule),
		log:      logger.WithModule("maintenance"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cron == nil {
		r.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return r
}

// Enabled reports whether Start schedules anything.
func (r *Reconciler) Enabled() bool {
	return r.checker != nil && r.schedule != ""
}

// Start registers the reconcile job and launches the scheduler.
func (r *Reconciler) Start() error {
	if !r.Enabled() {
		return nil
	}
	if _, err := r.cron.AddFunc(r.schedule, func() {
		r.RunOnce(context.Background())
	}); err != nil {
		return err
	}
	r.cron.Start()
	r.started = true
	r.log.Info("branding reconciler started", zap.String("schedule", r.schedule))
	return nil
}

// Stop halts the scheduler, returning a context done once running jobs finish.
func (r *Reconciler) Stop() context.Context {
	if r.cron == nil || !r.started {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	r.started = false
	return r.cron.Stop()
}

// RunOnce executes the check synchronously.
func (r *Reconciler) RunOnce(ctx context.Context) {
	if r.checker == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	r.checker.EnsureBranding(ctx, Trigger)
}
