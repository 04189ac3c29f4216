package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"polisdesk.org/internal/obs"
)

// Mailer delivers account emails. Delivery infrastructure is an external
// collaborator; the domain only hands over the recipient, display name and
// the reset token.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, name, token string) error
	SendPasswordChanged(ctx context.Context, to, name string) error
}

// LogMailer writes outgoing mail as structured log lines. It stands in for a
// real provider in development and tests.
type LogMailer struct {
	// BaseURL prefixes the reset link, e.g. https://app.polisdesk.org.
	BaseURL string
}

var _ Mailer = (*LogMailer)(nil)

func (m *LogMailer) SendPasswordReset(ctx context.Context, to, name, token string) error {
	return m.emit("password_reset", to, name, map[string]any{
		"reset_url": fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(m.BaseURL, "/"), token),
	})
}

func (m *LogMailer) SendPasswordChanged(ctx context.Context, to, name string) error {
	return m.emit("password_changed", to, name, nil)
}

func (m *LogMailer) emit(kind, to, name string, extra map[string]any) error {
	entry := map[string]any{
		"ts":   time.Now().UTC().Format(time.RFC3339Nano),
		"type": "mail",
		"kind": kind,
		"to":   to,
		"name": name,
	}
	for k, v := range extra {
		entry[k] = v
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
