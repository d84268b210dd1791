// Package mailer delivers magic-link login mail over SMTP.
package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// Sender delivers a login link to an address. The http layer depends on
// this interface so tests can capture links without a relay.
type Sender interface {
	SendLoginLink(ctx context.Context, to, link string) error
}

// SMTPSender sends through a single relay with optional PLAIN auth.
type SMTPSender struct {
	addr     string
	username string
	password string
	from     string
}

func NewSMTPSender(addr, username, password, from string) *SMTPSender {
	return &SMTPSender{addr: addr, username: username, password: password, from: from}
}

// Configured reports whether the relay address and sender are both set.
func (s *SMTPSender) Configured() bool {
	return s != nil && s.addr != "" && s.from != ""
}

func (s *SMTPSender) SendLoginLink(ctx context.Context, to, link string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.username != "" {
		host, _, err := net.SplitHostPort(s.addr)
		if err != nil {
			return fmt.Errorf("smtp address %q: %w", s.addr, err)
		}
		auth = smtp.PlainAuth("", s.username, s.password, host)
	}

	msg := buildLoginMessage(s.from, to, link)
	if err := smtp.SendMail(s.addr, auth, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("sending login mail: %w", err)
	}
	return nil
}

// buildLoginMessage renders the RFC 5322 payload. Kept pure so the
// format is testable without a relay.
func buildLoginMessage(from, to, link string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: Your sign-in link\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("Click the link below to sign in. It expires in 15 minutes.\r\n")
	b.WriteString("\r\n")
	b.WriteString(link + "\r\n")
	b.WriteString("\r\n")
	b.WriteString("If you did not request this, you can ignore this message.\r\n")
	return []byte(b.String())
}
