package auth

// Identity is the authenticated principal carried by a session token.
// GitHub logins populate the profile fields; magic-link logins carry only
// the email address.
type Identity struct {
	Username  string `json:"username,omitempty"`
	ID        int64  `json:"id,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Company   string `json:"company,omitempty"`
}

// Subject returns the claim used as the token subject.
func (i Identity) Subject() string {
	if i.Username != "" {
		return i.Username
	}
	return i.Email
}
