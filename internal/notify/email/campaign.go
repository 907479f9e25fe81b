package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jon4hz/csoportal/internal/database"
	"github.com/samber/lo"
)

// Default notification templates, used when the company settings leave them empty.
const (
	DefaultNotificationSubject = "{{month}} 수수료 정산 내역 안내"
	DefaultNotificationBody    = "{{company_name}} 담당자님, 안녕하세요.\n\n" +
		"{{month}} 수수료 정산 내역이 등록되었습니다.\n" +
		"정산 수수료 합계: {{total_commission}}\n\n" +
		"자세한 내역은 포털에서 확인해 주세요.\n{{portal_url}}"
)

var (
	// ErrNoRecipients is returned when a bulk send would not address anyone.
	ErrNoRecipients = errors.New("no recipients")
	// ErrEmptyTemplate is returned for a mail-merge without subject or body.
	ErrEmptyTemplate = errors.New("subject and body are required")
)

// MailMerge is an admin composed bulk email.
type MailMerge struct {
	Subject string
	Body    string
	// Month fills {{month}} and {{total_commission}}, optional.
	Month string
	// BusinessNumbers limits the recipients, empty means every approved account.
	BusinessNumbers []string
}

func recipientFromUser(u database.User) Recipient {
	return Recipient{
		UserID:         u.ID,
		BusinessNumber: u.BusinessNumber,
		CompanyName:    u.CompanyName,
		CEOName:        u.CEOName,
		Email:          strings.TrimSpace(u.Email),
		OptedOut:       !u.EmailOptIn,
	}
}

// NotificationRequest builds the settlement notification for a month. It addresses approved,
// opted in accounts that have rows in that month.
func (s *Service) NotificationRequest(ctx context.Context, month string) (BulkRequest, error) {
	company, err := s.settings.Company(ctx)
	if err != nil {
		return BulkRequest{}, err
	}
	totals, err := s.db.CommissionTotals(ctx, month)
	if err != nil {
		return BulkRequest{}, err
	}
	users, err := s.db.ListUsers(ctx, database.UserFilter{
		Approved:    lo.ToPtr(true),
		Role:        database.RoleUser,
		OnlyOptedIn: true,
	})
	if err != nil {
		return BulkRequest{}, err
	}

	var recipients []Recipient
	for _, u := range users {
		total, ok := totals[u.BusinessNumber]
		if !ok {
			continue
		}
		r := recipientFromUser(u)
		r.TotalCommission = total
		recipients = append(recipients, r)
	}
	if len(recipients) == 0 {
		return BulkRequest{}, fmt.Errorf("%w for %s", ErrNoRecipients, month)
	}

	return BulkRequest{
		Kind:       database.EmailKindNotification,
		Subject:    lo.CoalesceOrEmpty(company[database.CompanySettingNotificationSubject], DefaultNotificationSubject),
		Body:       lo.CoalesceOrEmpty(company[database.CompanySettingNotificationBody], DefaultNotificationBody),
		Month:      month,
		Recipients: recipients,
	}, nil
}

// MailMergeRequest builds a mail-merge send.
func (s *Service) MailMergeRequest(ctx context.Context, m MailMerge) (BulkRequest, error) {
	if strings.TrimSpace(m.Subject) == "" || strings.TrimSpace(m.Body) == "" {
		return BulkRequest{}, ErrEmptyTemplate
	}

	users, err := s.db.ListUsers(ctx, database.UserFilter{Approved: lo.ToPtr(true), Role: database.RoleUser})
	if err != nil {
		return BulkRequest{}, err
	}
	if len(m.BusinessNumbers) > 0 {
		users = lo.Filter(users, func(u database.User, _ int) bool {
			return lo.Contains(m.BusinessNumbers, u.BusinessNumber)
		})
	}

	var totals map[string]float64
	if m.Month != "" {
		if totals, err = s.db.CommissionTotals(ctx, m.Month); err != nil {
			return BulkRequest{}, err
		}
	}

	recipients := lo.Map(users, func(u database.User, _ int) Recipient {
		r := recipientFromUser(u)
		r.TotalCommission = totals[u.BusinessNumber]
		return r
	})
	if len(recipients) == 0 {
		return BulkRequest{}, ErrNoRecipients
	}

	return BulkRequest{
		Kind:       database.EmailKindMailMerge,
		Subject:    m.Subject,
		Body:       m.Body,
		Month:      m.Month,
		Recipients: recipients,
	}, nil
}

// Preview is a bulk send rendered for its first recipient.
type Preview struct {
	Recipients     int    `json:"recipients"`
	BusinessNumber string `json:"businessNumber"`
	CompanyName    string `json:"companyName"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
}

// Preview renders the templates of req for its first recipient.
func (s *Service) Preview(req BulkRequest) (*Preview, error) {
	if len(req.Recipients) == 0 {
		return nil, ErrNoRecipients
	}
	r := req.Recipients[0]
	values := MergeValues(r, req.Month, s.portalURL)
	return &Preview{
		Recipients:     len(req.Recipients),
		BusinessNumber: r.BusinessNumber,
		CompanyName:    r.CompanyName,
		Subject:        Render(req.Subject, values),
		Body:           Render(req.Body, values),
	}, nil
}

// SendPasswordReset emails a password reset link.
func (s *Service) SendPasswordReset(ctx context.Context, user *database.User, link string, ttl time.Duration) error {
	body := fmt.Sprintf("%s 담당자님, 안녕하세요.\n\n"+
		"비밀번호 재설정이 요청되었습니다. 아래 버튼을 눌러 새 비밀번호를 설정해 주세요.\n"+
		"링크는 %d분 동안 한 번만 사용할 수 있습니다.\n\n"+
		"요청하지 않으셨다면 이 메일을 무시해 주세요.", user.CompanyName, int(ttl.Minutes()))
	return s.sendSingle(ctx, database.EmailKindPasswordReset, user, "비밀번호 재설정 안내", body, link, "비밀번호 재설정")
}

// SendApproval tells a user that the account was approved.
func (s *Service) SendApproval(ctx context.Context, user *database.User) error {
	body := fmt.Sprintf("%s 담당자님, 안녕하세요.\n\n"+
		"회원가입이 승인되었습니다. 이제 사업자번호로 로그인하여 정산 내역을 확인하실 수 있습니다.", user.CompanyName)
	return s.sendSingle(ctx, database.EmailKindRegistration, user, "회원가입 승인 안내", body, s.portalURL, "로그인하기")
}

func (s *Service) sendSingle(ctx context.Context, kind string, user *database.User, subject, body, actionURL, actionLabel string) error {
	entry := &database.EmailLog{
		Kind:           kind,
		Recipient:      user.Email,
		BusinessNumber: user.BusinessNumber,
		Subject:        subject,
	}
	logCtx := context.WithoutCancel(ctx)

	if strings.TrimSpace(user.Email) == "" {
		entry.Status = database.EmailStatusSkipped
		entry.ErrorMessage = "no email address"
		s.writeLog(logCtx, entry)
		return nil
	}

	company, err := s.settings.Company(ctx)
	if err != nil {
		return fmt.Errorf("failed to load company settings: %w", err)
	}
	layout := newLayout(company, subject, body)
	layout.ActionURL = actionURL
	layout.ActionLabel = actionLabel

	if err := s.deliver(ctx, user.Email, layout); err != nil {
		entry.Status = database.EmailStatusFailed
		entry.ErrorMessage = err.Error()
		s.writeLog(logCtx, entry)
		return err
	}
	entry.Status = database.EmailStatusSent
	s.writeLog(logCtx, entry)
	return nil
}
