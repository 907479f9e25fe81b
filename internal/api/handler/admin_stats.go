package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/csoportal/internal/api/models"
	"github.com/jon4hz/csoportal/internal/database"
	"github.com/jon4hz/csoportal/internal/scheduler"
	"golang.org/x/sync/errgroup"
)

// Stats collects the dashboard numbers concurrently.
func (h *Handler) Stats(c *gin.Context) {
	var (
		stats  models.Stats
		users  *database.UserCounts
		months []database.MonthSummary
	)

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		users, err = h.db.CountUsers(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		months, err = h.db.ListSettlementMonths(ctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		stats.Settlements, err = h.db.CountSettlements(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		_, stats.EmailsSent, err = h.db.ListEmailLogs(ctx, database.EmailLogFilter{Status: database.EmailStatusSent, Limit: 1})
		return err
	})
	g.Go(func() error {
		var err error
		_, stats.EmailsFailed, err = h.db.ListEmailLogs(ctx, database.EmailLogFilter{Status: database.EmailStatusFailed, Limit: 1})
		return err
	})
	if err := g.Wait(); err != nil {
		handleError(c, err)
		return
	}

	stats.Users = users.Total
	stats.ApprovedUsers = users.Approved
	stats.PendingApprovals = users.Pending
	stats.Admins = users.Admins
	stats.Months = len(months)
	if len(months) > 0 {
		stats.LatestMonth = months[0].Month
		stats.LatestCommission = months[0].CommissionAmount
	}
	success(c, http.StatusOK, gin.H{"stats": stats})
}

func (h *Handler) Jobs(c *gin.Context) {
	success(c, http.StatusOK, gin.H{"jobs": h.scheduler.Jobs()})
}

func (h *Handler) Job(c *gin.Context) {
	job, ok := h.scheduler.Job(c.Param("id"))
	if !ok {
		handleError(c, scheduler.ErrJobNotFound)
		return
	}
	success(c, http.StatusOK, gin.H{"job": job})
}

// RunJob triggers a scheduled job immediately.
func (h *Handler) RunJob(c *gin.Context) {
	if err := h.scheduler.RunNow(c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusAccepted, gin.H{"message": "작업을 실행했습니다."})
}
