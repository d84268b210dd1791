package auth

import (
	"errors"
	"testing"
	"time"
)

func testCodec(secret string) *Codec {
	return NewCodec([]byte(secret))
}

func TestSessionToken_RoundTrip(t *testing.T) {
	codec := testCodec("test-secret")
	identity := Identity{
		Username:  "octocat",
		ID:        583231,
		Email:     "octocat@example.com",
		Name:      "The Octocat",
		AvatarURL: "https://example.com/a.png",
		Company:   "@acme",
	}

	token, err := codec.IssueSession(identity, time.Hour)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	got, err := codec.VerifySession(token)
	if err != nil {
		t.Fatalf("VerifySession: %v", err)
	}
	if got != identity {
		t.Fatalf("got %+v, want %+v", got, identity)
	}
}

func TestSessionToken_ExpiresAtTTL(t *testing.T) {
	codec := testCodec("test-secret")
	issued := time.Now()
	codec.now = func() time.Time { return issued }

	token, err := codec.IssueSession(Identity{Username: "octocat"}, time.Hour)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	// Just inside the TTL.
	codec.now = func() time.Time { return issued.Add(time.Hour - time.Second) }
	if _, err := codec.VerifySession(token); err != nil {
		t.Fatalf("token should still verify before expiry: %v", err)
	}

	// At and past the TTL.
	codec.now = func() time.Time { return issued.Add(time.Hour + time.Second) }
	_, err = codec.VerifySession(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("got %v, want ErrTokenExpired", err)
	}
}

func TestLoginToken_RoundTrip(t *testing.T) {
	codec := testCodec("test-secret")

	token, err := codec.IssueLogin("alice@example.com", 15*time.Minute)
	if err != nil {
		t.Fatalf("IssueLogin: %v", err)
	}

	email, err := codec.VerifyLogin(token)
	if err != nil {
		t.Fatalf("VerifyLogin: %v", err)
	}
	if email != "alice@example.com" {
		t.Fatalf("email = %q", email)
	}
}

func TestLoginToken_NoncesDiffer(t *testing.T) {
	codec := testCodec("test-secret")
	codec.now = func() time.Time { return time.Unix(1700000000, 0) }

	a, err := codec.IssueLogin("alice@example.com", time.Minute)
	if err != nil {
		t.Fatalf("IssueLogin: %v", err)
	}
	b, err := codec.IssueLogin("alice@example.com", time.Minute)
	if err != nil {
		t.Fatalf("IssueLogin: %v", err)
	}
	if a == b {
		t.Fatal("two login tokens for the same email at the same instant should differ")
	}
}

func TestAudience_NotInterchangeable(t *testing.T) {
	codec := testCodec("test-secret")

	login, err := codec.IssueLogin("alice@example.com", time.Minute)
	if err != nil {
		t.Fatalf("IssueLogin: %v", err)
	}
	if _, err := codec.VerifySession(login); !errors.Is(err, ErrAudienceMismatch) {
		t.Fatalf("login token verified as session: %v", err)
	}

	session, err := codec.IssueSession(Identity{Email: "alice@example.com"}, time.Minute)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if _, err := codec.VerifyLogin(session); !errors.Is(err, ErrAudienceMismatch) {
		t.Fatalf("session token verified as login: %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	token, err := testCodec("secret-a").IssueSession(Identity{Username: "octocat"}, time.Hour)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}

	_, err = testCodec("secret-b").VerifySession(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("got %v, want ErrInvalidToken", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	codec := testCodec("test-secret")
	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := codec.VerifySession(raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("VerifySession(%q) = %v, want ErrInvalidToken", raw, err)
		}
	}
}

func TestIdentitySubject(t *testing.T) {
	if got := (Identity{Username: "octocat", Email: "o@e.com"}).Subject(); got != "octocat" {
		t.Fatalf("got %q", got)
	}
	if got := (Identity{Email: "o@e.com"}).Subject(); got != "o@e.com" {
		t.Fatalf("got %q", got)
	}
}
