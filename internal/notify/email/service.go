package email

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jon4hz/csoportal/internal/database"
	"golang.org/x/time/rate"
)

// ErrBulkInProgress is returned when a bulk send is started while another one runs.
var ErrBulkInProgress = errors.New("a bulk send is already running")

// CompanySettings loads the sender details shown in every email.
type CompanySettings interface {
	Company(ctx context.Context) (map[string]string, error)
}

// BulkNotifier is told about finished bulk sends.
type BulkNotifier interface {
	SendBulkSummary(ctx context.Context, subject string, sent, failed, skipped int, cancelled bool) error
}

// Service renders and sends portal emails and records every attempt in the email log.
type Service struct {
	db        database.DB
	sender    Sender
	settings  CompanySettings
	notifier  BulkNotifier
	interval  time.Duration
	portalURL string

	mu  sync.Mutex
	job *job
}

// Options configures a Service.
type Options struct {
	// Interval is the minimum delay between two emails of a bulk send.
	Interval time.Duration
	// PortalURL is linked from emails.
	PortalURL string
	// Notifier is optional.
	Notifier BulkNotifier
}

// NewService creates a new email service.
func NewService(db database.DB, sender Sender, settings CompanySettings, opts Options) *Service {
	return &Service{
		db:        db,
		sender:    sender,
		settings:  settings,
		notifier:  opts.Notifier,
		interval:  opts.Interval,
		portalURL: opts.PortalURL,
	}
}

// BulkRequest describes a bulk send. Subject and Body are mail-merge templates.
type BulkRequest struct {
	Kind       string
	Subject    string
	Body       string
	Month      string
	Recipients []Recipient
}

// BulkResult counts the outcome of a bulk send.
type BulkResult struct {
	Total     int  `json:"total"`
	Sent      int  `json:"sent"`
	Failed    int  `json:"failed"`
	Skipped   int  `json:"skipped"`
	Cancelled bool `json:"cancelled"`
}

// SendBulk sends one email per recipient, sequentially and rate limited. Recipients without
// an address or opted out are skipped. A cancelled context stops the loop, the result then
// covers the recipients handled so far.
func (s *Service) SendBulk(ctx context.Context, req BulkRequest) (*BulkResult, error) {
	return s.sendBulk(ctx, req, nil)
}

func (s *Service) sendBulk(ctx context.Context, req BulkRequest, progress func(BulkResult)) (*BulkResult, error) {
	company, err := s.settings.Company(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load company settings: %w", err)
	}

	res := &BulkResult{Total: len(req.Recipients)}
	limit := rate.Inf
	if s.interval > 0 {
		limit = rate.Every(s.interval)
	}
	limiter := rate.NewLimiter(limit, 1)
	// logs are written even after cancellation
	logCtx := context.WithoutCancel(ctx)

	for _, r := range req.Recipients {
		values := MergeValues(r, req.Month, s.portalURL)
		subject := Render(req.Subject, values)
		entry := &database.EmailLog{
			Kind:            req.Kind,
			Recipient:       r.Email,
			BusinessNumber:  r.BusinessNumber,
			Subject:         subject,
			SettlementMonth: req.Month,
		}

		switch {
		case r.Email == "":
			entry.Status = database.EmailStatusSkipped
			entry.ErrorMessage = "no email address"
		case r.OptedOut:
			entry.Status = database.EmailStatusSkipped
			entry.ErrorMessage = "opted out"
		}
		if entry.Status == database.EmailStatusSkipped {
			res.Skipped++
			s.writeLog(logCtx, entry)
			if progress != nil {
				progress(*res)
			}
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			res.Cancelled = true
			break
		}

		layout := newLayout(company, subject, Render(req.Body, values))
		if s.portalURL != "" {
			layout.ActionURL = s.portalURL
			layout.ActionLabel = "포털 바로가기"
		}
		err := s.deliver(ctx, r.Email, layout)
		if err != nil {
			res.Failed++
			entry.Status = database.EmailStatusFailed
			entry.ErrorMessage = err.Error()
			log.Warn("failed to send email", "to", r.Email, "error", err)
		} else {
			res.Sent++
			entry.Status = database.EmailStatusSent
		}
		s.writeLog(logCtx, entry)
		if progress != nil {
			progress(*res)
		}
	}

	log.Info("bulk send finished",
		"kind", req.Kind,
		"sent", res.Sent,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"cancelled", res.Cancelled,
	)
	return res, nil
}

func (s *Service) deliver(ctx context.Context, to string, layout Layout) error {
	html, err := RenderHTML(layout)
	if err != nil {
		return fmt.Errorf("failed to render email: %w", err)
	}
	return s.sender.Send(ctx, Message{
		To:      to,
		Subject: layout.Subject,
		HTML:    html,
		Text:    layout.Body,
	})
}

func (s *Service) writeLog(ctx context.Context, entry *database.EmailLog) {
	// the storage layer logs the failure
	_ = s.db.CreateEmailLog(ctx, entry)
}

// JobStatus is the state of the current or last bulk send.
type JobStatus struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Subject    string     `json:"subject"`
	Month      string     `json:"month,omitempty"`
	Running    bool       `json:"running"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	BulkResult
}

type job struct {
	mu     sync.Mutex
	status JobStatus
	cancel context.CancelFunc
}

func (j *job) snapshot() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// StartBulk runs a bulk send in the background. Only one bulk send runs at a time.
func (s *Service) StartBulk(req BulkRequest) (JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job != nil && s.job.snapshot().Running {
		return JobStatus{}, ErrBulkInProgress
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		cancel: cancel,
		status: JobStatus{
			ID:         uuid.NewString(),
			Kind:       req.Kind,
			Subject:    req.Subject,
			Month:      req.Month,
			Running:    true,
			StartedAt:  time.Now(),
			BulkResult: BulkResult{Total: len(req.Recipients)},
		},
	}
	s.job = j

	go func() {
		defer cancel()
		res, err := s.sendBulk(ctx, req, func(r BulkResult) {
			j.mu.Lock()
			j.status.BulkResult = r
			j.mu.Unlock()
		})

		now := time.Now()
		j.mu.Lock()
		j.status.Running = false
		j.status.FinishedAt = &now
		if err != nil {
			j.status.Error = err.Error()
		} else {
			j.status.BulkResult = *res
		}
		j.mu.Unlock()

		if err == nil && s.notifier != nil {
			if nerr := s.notifier.SendBulkSummary(context.Background(), req.Subject, res.Sent, res.Failed, res.Skipped, res.Cancelled); nerr != nil {
				log.Warn("failed to send bulk summary", "error", nerr)
			}
		}
	}()

	return j.snapshot(), nil
}

// CancelBulk stops the running bulk send. It reports whether one was running.
func (s *Service) CancelBulk() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil || !s.job.snapshot().Running {
		return false
	}
	s.job.cancel()
	return true
}

// BulkStatus returns the state of the current or last bulk send, if any.
func (s *Service) BulkStatus() (JobStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return JobStatus{}, false
	}
	return s.job.snapshot(), true
}
