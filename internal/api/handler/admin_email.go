package handler

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/csoportal/internal/api/auth"
	"github.com/jon4hz/csoportal/internal/api/models"
	"github.com/jon4hz/csoportal/internal/bizno"
	"github.com/jon4hz/csoportal/internal/database"
	"github.com/jon4hz/csoportal/internal/notify/email"
	"github.com/jon4hz/csoportal/internal/settlement"
	"github.com/samber/lo"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

type notifyRequest struct {
	Month string `json:"month"`
}

type mailMergeRequest struct {
	Subject         string   `json:"subject"`
	Body            string   `json:"body"`
	Month           string   `json:"month"`
	BusinessNumbers []string `json:"businessNumbers"`
}

func (r mailMergeRequest) toMailMerge() email.MailMerge {
	numbers := lo.Uniq(lo.FilterMap(r.BusinessNumbers, func(s string, _ int) (string, bool) {
		n := bizno.Normalize(s)
		return n, n != ""
	}))
	return email.MailMerge{
		Subject:         r.Subject,
		Body:            r.Body,
		Month:           r.Month,
		BusinessNumbers: numbers,
	}
}

// mailMergeBulk builds the bulk request of a mail-merge body and writes a response on failure.
func (h *Handler) mailMergeBulk(c *gin.Context) (email.BulkRequest, bool) {
	var req mailMergeRequest
	if !bindJSON(c, &req) {
		return email.BulkRequest{}, false
	}
	if req.Month != "" && !settlement.ValidMonth(req.Month) {
		handleError(c, settlement.ErrInvalidMonth)
		return email.BulkRequest{}, false
	}
	bulk, err := h.mail.MailMergeRequest(c.Request.Context(), req.toMailMerge())
	if err != nil {
		handleError(c, err)
		return email.BulkRequest{}, false
	}
	return bulk, true
}

// SendNotifications emails the settlement notification of a month to every account with rows in it.
func (h *Handler) SendNotifications(c *gin.Context) {
	var req notifyRequest
	if !bindJSON(c, &req) {
		return
	}
	if !settlement.ValidMonth(req.Month) {
		handleError(c, settlement.ErrInvalidMonth)
		return
	}
	bulk, err := h.mail.NotificationRequest(c.Request.Context(), req.Month)
	if err != nil {
		handleError(c, err)
		return
	}
	h.startBulk(c, bulk)
}

func (h *Handler) SendMailMerge(c *gin.Context) {
	bulk, ok := h.mailMergeBulk(c)
	if !ok {
		return
	}
	h.startBulk(c, bulk)
}

func (h *Handler) startBulk(c *gin.Context, bulk email.BulkRequest) {
	status, err := h.mail.StartBulk(bulk)
	if err != nil {
		handleError(c, err)
		return
	}
	log.Info("bulk email started",
		"kind", bulk.Kind,
		"recipients", len(bulk.Recipients),
		"by", auth.CurrentUser(c).Email,
	)
	success(c, http.StatusAccepted, gin.H{
		"message": "발송을 시작했습니다.",
		"job":     status,
	})
}

// PreviewMailMerge renders a mail-merge for its first recipient without sending it.
func (h *Handler) PreviewMailMerge(c *gin.Context) {
	bulk, ok := h.mailMergeBulk(c)
	if !ok {
		return
	}
	preview, err := h.mail.Preview(bulk)
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"preview": preview})
}

func (h *Handler) EmailStatus(c *gin.Context) {
	status, ok := h.mail.BulkStatus()
	if !ok {
		success(c, http.StatusOK, gin.H{"job": nil})
		return
	}
	success(c, http.StatusOK, gin.H{"job": status})
}

func (h *Handler) CancelEmail(c *gin.Context) {
	if !h.mail.CancelBulk() {
		fail(c, http.StatusConflict, "진행 중인 발송 작업이 없습니다.")
		return
	}
	success(c, http.StatusOK, gin.H{"message": "발송을 중단했습니다."})
}

// EmailLogs returns a page of the email log.
func (h *Handler) EmailLogs(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultLogLimit, maxLogLimit)
	if err != nil {
		fail(c, http.StatusBadRequest, "limit 값이 올바르지 않습니다.")
		return
	}
	offset, err := queryInt(c, "offset", 0, 1<<30)
	if err != nil {
		fail(c, http.StatusBadRequest, "offset 값이 올바르지 않습니다.")
		return
	}

	entries, total, err := h.db.ListEmailLogs(c.Request.Context(), database.EmailLogFilter{
		Kind:   c.Query("kind"),
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{
		"logs":  models.ToEmailLogs(entries),
		"total": total,
	})
}

// Placeholders lists the placeholders a mail-merge template may use.
func (h *Handler) Placeholders(c *gin.Context) {
	success(c, http.StatusOK, gin.H{"placeholders": email.Placeholders})
}
