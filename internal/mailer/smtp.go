package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// SMTPMailer sends mail through a plain SMTP relay with AUTH PLAIN.
type SMTPMailer struct {
	Host    string
	Port    string
	User    string
	Pass    string
	From    string
	Timeout time.Duration
}

// NewSMTPMailer returns a mailer for the given relay. timeout bounds the whole
// send (dial plus protocol exchange); zero means the 15s default.
func NewSMTPMailer(host, port, user, pass, from string, timeout time.Duration) *SMTPMailer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &SMTPMailer{Host: host, Port: port, User: user, Pass: pass, From: from, Timeout: timeout}
}

// Send delivers one message. The connection deadline covers the full SMTP
// exchange so a slow relay cannot stall the calling request.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.Host == "" {
		return fmt.Errorf("mailer: SMTP host not configured")
	}
	addr := net.JoinHostPort(m.Host, m.Port)

	deadline := time.Now().Add(m.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	conn, err := (&net.Dialer{Deadline: deadline}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("mailer: dial %s: %w", addr, err)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return err
	}

	c, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("mailer: handshake: %w", err)
	}
	defer c.Close()

	if m.User != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", m.User, m.Pass, m.Host)
			if err := c.Auth(auth); err != nil {
				return fmt.Errorf("mailer: auth: %w", err)
			}
		}
	}
	if err := c.Mail(m.From); err != nil {
		return fmt.Errorf("mailer: mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("mailer: rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("mailer: data: %w", err)
	}
	if _, err := w.Write([]byte(Message(m.From, to, subject, body))); err != nil {
		_ = w.Close()
		return fmt.Errorf("mailer: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mailer: close data: %w", err)
	}
	return c.Quit()
}

// Message renders a minimal RFC 5322 message with CRLF line endings.
func Message(from, to, subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.String()
}
