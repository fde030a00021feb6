package interfaces

import "context"

// SchedulerService runs periodic availability checks, one job per
// enabled target.
type SchedulerService interface {
	// Start begins the cron loop and schedules all enabled targets.
	Start(ctx context.Context) error

	// Reconcile diffs the job table against the store: jobs are added
	// for new enabled targets, removed for deleted or disabled ones and
	// replaced when the interval changed. Idempotent.
	Reconcile(ctx context.Context) error

	// Stop halts the cron loop and waits for in-flight checks.
	Stop(ctx context.Context) error

	// JobCount returns the number of scheduled targets.
	JobCount() int
}
