package event

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FullLogger extends Logger with the levels the log consumer can target.
type FullLogger interface {
	Logger
	Info(msg string, keyvals ...interface{})
	Debug(msg string, keyvals ...interface{})
}

// NewLogConsumer returns a plain callback that logs every delivered event
// at the given level (debug, info, warn). Subscribe it with no type filter
// to get a full event log.
func NewLogConsumer(logger FullLogger, level string) Func {
	if level == "" {
		level = "info"
	}
	return func(ev Event) {
		msg := fmt.Sprintf("[event] %s", ev.Type)
		keyvals := make([]interface{}, 0, len(ev.Data)*2+6)
		keyvals = append(keyvals, "event_id", ev.ID)
		if ev.SessionID != "" {
			keyvals = append(keyvals, "session_id", ev.SessionID)
		}
		if ev.Source != "" {
			keyvals = append(keyvals, "source", ev.Source)
		}
		for k, v := range ev.Data {
			keyvals = append(keyvals, k, v)
		}

		switch level {
		case "debug":
			logger.Debug(msg, keyvals...)
		case "warn":
			logger.Warn(msg, keyvals...)
		default:
			logger.Info(msg, keyvals...)
		}
	}
}

// NewWebhookConsumer returns a context-aware callback that POSTs each
// delivered event as JSON to url. Register it with a type filter to limit
// the traffic it generates.
func NewWebhookConsumer(name, url string, timeout time.Duration) CtxFunc {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	return func(ctx context.Context, ev Event) error {
		body, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook %s failed: %w", name, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook %s failed: %w", name, err)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= 400 {
			return fmt.Errorf("webhook %s returned status %d", name, resp.StatusCode)
		}
		return nil
	}
}
