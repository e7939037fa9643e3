package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"jobgate.org/internal/obs"
)

// SMTPMailer sends mail over plain SMTP with AUTH. The caller bounds
// dispatch time through the context; the dial itself honors it by running in
// a goroutine because net/smtp has no context support.
type SMTPMailer struct {
	addr        string // host:port
	auth        smtp.Auth
	fromName    string
	fromAddress string
}

// NewSMTPMailer constructs a transport for the given server.
func NewSMTPMailer(host string, port int, username, password, fromName, fromAddress string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPMailer{
		addr:        fmt.Sprintf("%s:%d", host, port),
		auth:        auth,
		fromName:    fromName,
		fromAddress: fromAddress,
	}
}

// Send delivers the message, honoring ctx cancellation.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	payload := m.render(msg)
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(m.addr, m.auth, m.fromAddress, []string{msg.To}, payload)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *SMTPMailer) render(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", m.fromName, m.fromAddress)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

// LogMailer is the development transport: it logs the rendered message
// instead of sending it.
type LogMailer struct{}

// Send writes the message to the structured log.
func (LogMailer) Send(_ context.Context, msg Message) error {
	obs.LogEntry(map[string]any{
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"level":   "info",
		"msg":     "mail (log only; configure SMTP for real delivery)",
		"to":      msg.To,
		"subject": msg.Subject,
		"body":    msg.Body,
	})
	return nil
}
