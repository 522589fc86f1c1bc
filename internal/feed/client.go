package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kjannette/trahn-post-trader/internal/httputil"
	"github.com/kjannette/trahn-post-trader/internal/models"
)

type Config struct {
	BearerToken  string
	APIURL       string
	StreamURL    string
	PingInterval time.Duration
	ReadTimeout  time.Duration
}

// Client talks to the social feed: REST lookups and the live post stream.
type Client struct {
	cfg        Config
	httpClient *http.Client
	dialer     *websocket.Dialer
	retry      httputil.RetryConfig
	log        *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 90 * time.Second
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("feed")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
			Logger:      log,
		},
		log: log,
	}
}

// LookupUserID resolves a handle to the account id the stream follows.
func (c *Client) LookupUserID(ctx context.Context, handle string) (string, error) {
	handle = strings.TrimPrefix(handle, "@")
	endpoint := c.cfg.APIURL + "/users/by/username/" + url.PathEscape(handle)

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", handle, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("lookup %s: read body: %w", handle, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("lookup %s: status %d: %s", handle, resp.StatusCode, string(body))
	}

	var out struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode lookup: %w", err)
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("lookup %s: user not found", handle)
	}
	return out.Data.ID, nil
}

// Stream follows userID and delivers posts to h until the connection fails,
// h returns an error, or ctx is cancelled. It never reconnects.
func (c *Client) Stream(ctx context.Context, userID string, h Handler) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.BearerToken)

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.StreamURL, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		h.OnError(err)
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string][]string{"follow": {userID}}); err != nil {
		h.OnError(err)
		return fmt.Errorf("subscribe: %w", err)
	}
	c.log.Info("stream connected", zap.String("follow", userID))

	done := make(chan struct{})
	defer close(done)
	go c.keepalive(ctx, conn, done)

	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			h.OnError(err)
			return fmt.Errorf("read stream: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		msg = bytes.TrimSpace(msg)
		if len(msg) == 0 || string(msg) == "{}" {
			continue
		}

		var p models.Post
		if err := json.Unmarshal(msg, &p); err != nil {
			err = fmt.Errorf("decode post: %w", err)
			h.OnError(err)
			return err
		}
		if err := h.OnPost(ctx, p); err != nil {
			return err
		}
	}
}

func (c *Client) keepalive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil &&
				!errors.Is(err, websocket.ErrCloseSent) {
				c.log.Debug("ping failed", zap.Error(err))
			}
		}
	}
}
