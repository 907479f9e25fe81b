// Package housekeeping removes stale rows from the database.
package housekeeping

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/csoportal/internal/database"
	"github.com/jon4hz/csoportal/internal/scheduler"
)

// JobID is the scheduler id of the housekeeping job.
const JobID = "housekeeping"

// Result counts the removed rows.
type Result struct {
	ResetTokens int64
	EmailLogs   int64
}

// Run purges used or expired reset tokens and, with a positive retention, email logs
// older than that many days.
func Run(ctx context.Context, db database.DB, emailLogDays int, now time.Time) (*Result, error) {
	var res Result
	var err error

	res.ResetTokens, err = db.PurgePasswordResetTokens(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to purge reset tokens: %w", err)
	}
	if emailLogDays > 0 {
		res.EmailLogs, err = db.PurgeEmailLogs(ctx, now.AddDate(0, 0, -emailLogDays))
		if err != nil {
			return nil, fmt.Errorf("failed to purge email logs: %w", err)
		}
	}
	if res.ResetTokens > 0 || res.EmailLogs > 0 {
		log.Info("housekeeping removed stale rows", "reset_tokens", res.ResetTokens, "email_logs", res.EmailLogs)
	}
	return &res, nil
}

// Register adds the housekeeping job to the scheduler.
func Register(s *scheduler.Scheduler, schedule string, db database.DB, emailLogDays int) error {
	return s.AddCronJob(JobID, "Housekeeping", schedule, func(ctx context.Context) error {
		_, err := Run(ctx, db, emailLogDays, time.Now())
		return err
	})
}
