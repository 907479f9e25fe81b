package ntfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/csoportal/internal/bizno"
	"github.com/jon4hz/csoportal/internal/config"
)

// Client publishes admin notifications to a ntfy server.
type Client struct {
	serverURL  string
	topic      string
	username   string
	password   string
	token      string
	httpClient *http.Client
}

// Message represents a ntfy message.
type Message struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Actions  []Action `json:"actions,omitempty"`
	Click    string   `json:"click,omitempty"`
}

// Action represents a ntfy action button.
type Action struct {
	Action string `json:"action"`
	Label  string `json:"label"`
	URL    string `json:"url,omitempty"`
}

// NewClient creates a new ntfy client. It returns nil when ntfy is disabled,
// all methods are no-ops on a nil client.
func NewClient(cfg *config.NtfyConfig) *Client {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return &Client{
		serverURL: strings.TrimSuffix(cfg.ServerURL, "/"),
		topic:     cfg.Topic,
		username:  cfg.Username,
		password:  cfg.Password,
		token:     cfg.Token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SendMessage publishes a message.
func (c *Client) SendMessage(ctx context.Context, msg Message) error {
	if c == nil {
		return nil
	}
	if c.topic != "" {
		msg.Topic = c.topic
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Markdown", "yes")

	// token takes precedence over basic auth
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		if len(body) > 0 {
			return fmt.Errorf("ntfy server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return fmt.Errorf("ntfy server returned status %d", resp.StatusCode)
	}

	log.Debug("sent ntfy notification", "topic", msg.Topic, "title", msg.Title)
	return nil
}

// SendRegistration tells the admins that an account is waiting for approval.
func (c *Client) SendRegistration(ctx context.Context, companyName, businessNumber, adminURL string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "**업체명:** %s\n", companyName)
	fmt.Fprintf(&b, "**사업자번호:** %s\n\n", bizno.Format(businessNumber))
	b.WriteString("관리자 화면에서 가입을 승인해 주세요.")

	msg := Message{
		Title:    "신규 가입 요청",
		Message:  b.String(),
		Priority: 4,
		Tags:     []string{"bust_in_silhouette", "csoportal", "registration"},
	}
	if adminURL != "" {
		msg.Click = adminURL
		msg.Actions = []Action{{Action: "view", Label: "승인하기", URL: adminURL}}
	}
	return c.SendMessage(ctx, msg)
}

// SendBulkSummary reports the outcome of a bulk email run.
func (c *Client) SendBulkSummary(ctx context.Context, subject string, sent, failed, skipped int, cancelled bool) error {
	var b strings.Builder
	fmt.Fprintf(&b, "**제목:** %s\n\n", subject)
	fmt.Fprintf(&b, "발송 %d건, 실패 %d건, 제외 %d건", sent, failed, skipped)
	if cancelled {
		b.WriteString("\n\n발송이 중단되었습니다.")
	}

	tags := []string{"envelope", "csoportal", "mail"}
	priority := 3
	if failed > 0 || cancelled {
		tags[0] = "warning"
		priority = 4
	}
	return c.SendMessage(ctx, Message{
		Title:    "메일 발송 결과",
		Message:  b.String(),
		Priority: priority,
		Tags:     tags,
	})
}
