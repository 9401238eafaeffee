package tlsengine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// ExpiryChecker runs scheduled certificate expiry checks against a
// CertReloader and logs a warning when the certificate approaches its
// NotAfter date. It is a diagnostic aid, not a validation policy.
type ExpiryChecker struct {
	reloader *CertReloader
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewExpiryChecker creates a checker with a standard cron schedule, e.g.
// "0 6 * * *" for daily at 6 AM.
func NewExpiryChecker(reloader *CertReloader, schedule string) *ExpiryChecker {
	return &ExpiryChecker{
		reloader: reloader,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "tlsengine.expiry"),
	}
}

// Start schedules the checks and stops them when ctx is cancelled.
// An empty schedule disables the checker.
func (c *ExpiryChecker) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.schedule == "" {
		c.logger.Info("expiry check schedule not configured, skipping")
		return nil
	}

	if _, err := cron.ParseStandard(c.schedule); err != nil {
		return fmt.Errorf("invalid expiry check schedule %q: %w", c.schedule, err)
	}

	if _, err := c.cron.AddFunc(c.schedule, c.check); err != nil {
		return fmt.Errorf("failed to schedule expiry check: %w", err)
	}

	c.cron.Start()
	c.running = true
	c.logger.Info("certificate expiry checker started", "schedule", c.schedule)

	go func() {
		<-ctx.Done()
		c.Stop()
	}()

	return nil
}

// check is one scheduled run.
func (c *ExpiryChecker) check() {
	leaf := c.reloader.Leaf()
	if leaf == nil {
		c.logger.Warn("expiry check found no loaded certificate")
		return
	}

	days, warning := CheckExpiration(leaf)
	if warning != "" {
		c.logger.Warn("certificate expiring soon",
			"subject", leaf.Subject.CommonName,
			"expires_in_days", days,
		)
		return
	}

	c.logger.Debug("certificate expiry check passed", "expires_in_days", days)
}

// Stop stops the scheduler and waits for a running check to finish.
func (c *ExpiryChecker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	<-c.cron.Stop().Done()
	c.running = false
}
