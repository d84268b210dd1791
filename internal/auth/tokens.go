package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token audiences. A login token proves control of an email address and is
// only accepted by the verify endpoint; a session token proves an
// established session. The audience claim keeps the two from being swapped.
const (
	AudienceSession = "session"
	AudienceLogin   = "login"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrAudienceMismatch = errors.New("token audience mismatch")
)

// Codec issues and verifies HS256-signed tokens. Verification fails closed:
// every malformation, signature mismatch, expiry breach, or audience
// mismatch yields an error and a zero claim set.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret []byte) *Codec {
	return &Codec{secret: secret, now: time.Now}
}

type sessionClaims struct {
	Username  string `json:"username,omitempty"`
	UserID    int64  `json:"uid,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Company   string `json:"company,omitempty"`
	jwt.RegisteredClaims
}

type loginClaims struct {
	Email string `json:"email"`
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

// IssueSession signs a session token carrying the full identity claims.
func (c *Codec) IssueSession(identity Identity, ttl time.Duration) (string, error) {
	now := c.now()
	claims := sessionClaims{
		Username:  identity.Username,
		UserID:    identity.ID,
		Email:     identity.Email,
		Name:      identity.Name,
		AvatarURL: identity.AvatarURL,
		Company:   identity.Company,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Subject(),
			Audience:  jwt.ClaimStrings{AudienceSession},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// IssueLogin signs a short-lived single-email token for a magic link. The
// random nonce makes every issued link distinct.
func (c *Codec) IssueLogin(email string, ttl time.Duration) (string, error) {
	nonce, err := newNonce()
	if err != nil {
		return "", err
	}

	now := c.now()
	claims := loginClaims{
		Email: email,
		Nonce: nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Audience:  jwt.ClaimStrings{AudienceLogin},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// VerifySession validates a session token and returns the embedded identity.
func (c *Codec) VerifySession(raw string) (Identity, error) {
	claims := sessionClaims{}
	if err := c.verify(raw, &claims, AudienceSession); err != nil {
		return Identity{}, err
	}

	return Identity{
		Username:  claims.Username,
		ID:        claims.UserID,
		Email:     claims.Email,
		Name:      claims.Name,
		AvatarURL: claims.AvatarURL,
		Company:   claims.Company,
	}, nil
}

// VerifyLogin validates a login token and returns the proven email address.
func (c *Codec) VerifyLogin(raw string) (string, error) {
	claims := loginClaims{}
	if err := c.verify(raw, &claims, AudienceLogin); err != nil {
		return "", err
	}
	if claims.Email == "" {
		return "", ErrInvalidToken
	}
	return claims.Email, nil
}

func (c *Codec) verify(raw string, claims jwt.Claims, audience string) error {
	parsed, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithAudience(audience))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			return ErrAudienceMismatch
		default:
			return ErrInvalidToken
		}
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}

func newNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
