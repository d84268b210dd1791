// Package allowlist decides whether an authenticated identity may use the
// gateway. An empty policy allows everyone (open mode); configuring any
// entry switches the relevant check to deny-by-default.
package allowlist

import (
	"regexp"
	"strings"

	"agentgate/internal/auth"
)

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type Policy struct {
	users   map[string]struct{}
	org     string
	emails  map[string]struct{}
	domains map[string]struct{}
}

// NewPolicy builds an immutable policy snapshot. Entries are matched
// case-insensitively; callers pass them already trimmed and lower-cased
// (config.Load does).
func NewPolicy(users []string, org string, emails []string, domains []string) *Policy {
	return &Policy{
		users:   toSet(users),
		org:     strings.ToLower(strings.TrimSpace(org)),
		emails:  toSet(emails),
		domains: toSet(domains),
	}
}

// AllowsGithub reports whether a GitHub identity may log in. With no users
// and no org configured every authenticated identity is allowed. The org
// check is a heuristic substring match on the self-reported company field;
// it is not an authoritative membership lookup.
func (p *Policy) AllowsGithub(identity auth.Identity) bool {
	if identity.Username == "" {
		return false
	}

	if len(p.users) == 0 && p.org == "" {
		return true
	}

	username := strings.ToLower(identity.Username)
	if _, ok := p.users[username]; ok {
		return true
	}

	if p.org != "" && identity.Company != "" {
		company := strings.ToLower(identity.Company)
		company = strings.ReplaceAll(company, "@", "")
		company = strings.Join(strings.Fields(company), "")
		return strings.Contains(company, p.org)
	}

	return false
}

// AllowsEmail reports whether an email address may receive a login link.
// Malformed addresses are always rejected; with no emails and no domains
// configured every well-formed address is allowed.
func (p *Policy) AllowsEmail(email string) bool {
	if !emailShape.MatchString(email) {
		return false
	}

	normalized := strings.ToLower(strings.TrimSpace(email))
	if len(p.emails) == 0 && len(p.domains) == 0 {
		return true
	}

	if _, ok := p.emails[normalized]; ok {
		return true
	}

	at := strings.LastIndex(normalized, "@")
	domain := normalized[at+1:]
	_, ok := p.domains[domain]
	return ok
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		trimmed := strings.ToLower(strings.TrimSpace(item))
		if trimmed == "" {
			continue
		}
		set[trimmed] = struct{}{}
	}
	return set
}
