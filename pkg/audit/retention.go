package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Purger deletes audit records older than a cutoff
type Purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJob periodically purges audit logs past the retention window
type RetentionJob struct {
	purger Purger
	policy RetentionPolicy
	log    logrus.FieldLogger
	cron   *cron.Cron
	now    func() time.Time
}

// NewRetentionJob creates a retention job; call Start to schedule it
func NewRetentionJob(purger Purger, policy RetentionPolicy, log logrus.FieldLogger) *RetentionJob {
	return &RetentionJob{
		purger: purger,
		policy: policy,
		log:    log.WithField("job", "audit_retention"),
		cron:   cron.New(),
		now:    time.Now,
	}
}

// Start schedules the purge on the policy's cron expression
func (j *RetentionJob) Start() error {
	if j.policy.RetentionDays <= 0 {
		return fmt.Errorf("retention days must be positive, got %d", j.policy.RetentionDays)
	}
	_, err := j.cron.AddFunc(j.policy.Schedule, func() {
		if _, err := j.RunOnce(context.Background()); err != nil {
			j.log.WithError(err).Error("audit retention purge failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule audit retention: %w", err)
	}
	j.cron.Start()
	return nil
}

// RunOnce purges everything older than the retention window
func (j *RetentionJob) RunOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().AddDate(0, 0, -j.policy.RetentionDays)
	n, err := j.purger.Purge(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	j.log.WithFields(logrus.Fields{"removed": n, "cutoff": cutoff.Format(time.RFC3339)}).Info("audit logs purged")
	return n, nil
}

// Stop stops the scheduler and waits for a running purge to finish
func (j *RetentionJob) Stop() {
	<-j.cron.Stop().Done()
}
