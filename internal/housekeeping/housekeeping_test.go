package housekeeping

import (
	"context"
	"testing"
	"time"

	"github.com/jon4hz/csoportal/internal/database"
	"github.com/jon4hz/csoportal/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	ctx := context.Background()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	now := time.Now()
	used := now.Add(-time.Minute)
	for _, tok := range []*database.PasswordResetToken{
		{Token: "expired", UserID: 1, ExpiresAt: now.Add(-time.Hour)},
		{Token: "used", UserID: 1, ExpiresAt: now.Add(time.Hour), UsedAt: &used},
		{Token: "valid", UserID: 1, ExpiresAt: now.Add(time.Hour)},
	} {
		require.NoError(t, db.CreatePasswordResetToken(ctx, tok))
	}
	for _, entry := range []*database.EmailLog{
		{CreatedAt: now.AddDate(0, 0, -100), Kind: database.EmailKindNotification, Recipient: "old@example.com", Status: database.EmailStatusSent},
		{CreatedAt: now.AddDate(0, 0, -1), Kind: database.EmailKindNotification, Recipient: "new@example.com", Status: database.EmailStatusSent},
	} {
		require.NoError(t, db.CreateEmailLog(ctx, entry))
	}

	res, err := Run(ctx, db, 90, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.ResetTokens)
	assert.Equal(t, int64(1), res.EmailLogs)

	_, err = db.GetPasswordResetToken(ctx, "valid")
	assert.NoError(t, err)
	logs, total, err := db.ListEmailLogs(ctx, database.EmailLogFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "new@example.com", logs[0].Recipient)
}

func TestRun_KeepsEmailLogsWithoutRetention(t *testing.T) {
	ctx := context.Background()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	require.NoError(t, db.CreateEmailLog(ctx, &database.EmailLog{
		CreatedAt: time.Now().AddDate(-1, 0, 0),
		Kind:      database.EmailKindMailMerge,
		Status:    database.EmailStatusSent,
	}))

	res, err := Run(ctx, db, 0, time.Now())
	require.NoError(t, err)
	assert.Zero(t, res.EmailLogs)
}

func TestRegister(t *testing.T) {
	db, err := database.New(":memory:")
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	s, err := scheduler.New()
	require.NoError(t, err)
	defer s.Stop() //nolint:errcheck

	require.NoError(t, Register(s, "30 3 * * *", db, 90))
	info, ok := s.Job(JobID)
	require.True(t, ok)
	assert.Equal(t, "30 3 * * *", info.Schedule)
}
