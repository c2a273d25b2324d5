package cron

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RunFunc performs one scheduled scrape
type RunFunc func(ctx context.Context) error

// CronManager schedules scrape runs
type CronManager struct {
	cron     *cron.Cron
	schedule string
	run      RunFunc

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCronManager creates a new cron manager. The schedule uses the six-field
// format with seconds, or a descriptor such as "@every 6h".
func NewCronManager(schedule string, run RunFunc) *CronManager {
	// Create cron with seconds precision; a run still in progress makes the
	// next tick a no-op
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(
			cron.Recover(cron.PrintfLogger(log.Default())),
			cron.SkipIfStillRunning(cron.PrintfLogger(log.Default())),
		),
	)

	return &CronManager{
		cron:     c,
		schedule: schedule,
		run:      run,
	}
}

// Start registers the scrape job and starts the scheduler. Runs get a context
// derived from ctx, which Stop cancels.
func (m *CronManager) Start(ctx context.Context) error {
	log.Println("Starting cron jobs...")

	m.mu.Lock()
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	if _, err := m.cron.AddFunc(m.schedule, m.scrape); err != nil {
		m.cancel()
		return err
	}

	m.cron.Start()

	log.Printf("Cron jobs started successfully (schedule %q)", m.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running scrape to finish
func (m *CronManager) Stop() {
	log.Println("Stopping cron jobs...")

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()

	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron jobs stopped")
}

// Next returns the time of the next scheduled run
func (m *CronManager) Next() time.Time {
	entries := m.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (m *CronManager) scrape() {
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()

	m.logJobStart("scrape")
	if err := m.run(ctx); err != nil {
		m.logJobError("scrape", err)
		return
	}
	m.logJobComplete("scrape")
}

// logJobStart logs the start of a cron job
func (m *CronManager) logJobStart(jobName string) {
	log.Printf("[CRON] Starting job: %s at %s", jobName, time.Now().Format(time.RFC3339))
}

// logJobComplete logs successful completion of a cron job
func (m *CronManager) logJobComplete(jobName string) {
	log.Printf("[CRON] Completed job: %s", jobName)
}

// logJobError logs a cron job error
func (m *CronManager) logJobError(jobName string, err error) {
	log.Printf("[CRON] Error in job: %s - %v", jobName, err)
}
