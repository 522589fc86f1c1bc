package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjannette/trahn-post-trader/internal/httputil"
)

// Sender posts notifications to a Slack or Discord webhook. Delivery is best
// effort: failures are logged and never returned to the caller.
type Sender struct {
	webhookURL string
	botName    string
	recipient  string
	httpClient *http.Client
	retry      httputil.RetryConfig
	log        *zap.Logger
}

func NewSender(webhookURL, botName, recipient string, log *zap.Logger) *Sender {
	if botName == "" {
		botName = "TrahnPostTrader"
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("notify")
	return &Sender{
		webhookURL: webhookURL,
		botName:    botName,
		recipient:  recipient,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
			Logger:      log,
		},
		log: log,
	}
}

// Notify sends subject and body as one message.
func (s *Sender) Notify(subject, body string) {
	msg := fmt.Sprintf("[%s] %s", s.botName, subject)
	if body != "" {
		msg += "\n" + body
	}
	s.log.Info(subject, zap.String("recipient", s.recipient))

	if s.webhookURL == "" {
		return
	}

	payload, err := json.Marshal(s.formatPayload(msg))
	if err != nil {
		s.log.Warn("marshal notification", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := httputil.Do(ctx, s.httpClient, s.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		s.log.Warn("notification not delivered", zap.String("subject", subject), zap.Error(err))
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.log.Warn("notification rejected", zap.String("subject", subject), zap.Int("status", resp.StatusCode))
	}
}

func (s *Sender) formatPayload(msg string) map[string]string {
	if s.recipient != "" {
		msg = fmt.Sprintf("%s\n(to: %s)", msg, s.recipient)
	}
	if strings.Contains(s.webhookURL, "discord") {
		return map[string]string{
			"content":  msg,
			"username": s.botName,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("```%s```", msg),
		"username": s.botName,
	}
}

func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}
