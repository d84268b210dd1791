package mailer

import (
	"strings"
	"testing"
)

func TestBuildLoginMessage(t *testing.T) {
	msg := string(buildLoginMessage("gw@example.com", "user@example.org", "https://gw.example.com/auth/verify?t=tok"))

	headerEnd := strings.Index(msg, "\r\n\r\n")
	if headerEnd < 0 {
		t.Fatal("message has no header/body separator")
	}
	headers := msg[:headerEnd]

	for _, want := range []string{
		"From: gw@example.com",
		"To: user@example.org",
		"Subject: Your sign-in link",
		"Content-Type: text/plain; charset=utf-8",
	} {
		if !strings.Contains(headers, want) {
			t.Errorf("headers missing %q:\n%s", want, headers)
		}
	}
	if !strings.Contains(msg[headerEnd:], "https://gw.example.com/auth/verify?t=tok") {
		t.Error("body missing the login link")
	}
	if strings.Contains(msg, "\n") && strings.Count(msg, "\r\n") != strings.Count(msg, "\n") {
		t.Error("message contains bare LF line endings")
	}
}

func TestConfigured(t *testing.T) {
	if !NewSMTPSender("smtp.example.com:587", "u", "p", "gw@example.com").Configured() {
		t.Fatal("sender with addr and from should be configured")
	}
	if NewSMTPSender("", "u", "p", "gw@example.com").Configured() {
		t.Fatal("sender without an address should not be configured")
	}
	if NewSMTPSender("smtp.example.com:587", "", "", "").Configured() {
		t.Fatal("sender without a from address should not be configured")
	}
	var nilSender *SMTPSender
	if nilSender.Configured() {
		t.Fatal("nil sender should not be configured")
	}
}
