// Package account normalizes authenticated identities at the provider
// boundary. Providers hand back either a primary id or only a token subject;
// everything past this package sees a single Identity shape.
package account

// Identity is a normalized authenticated account. A nil Identity means
// anonymous.
type Identity struct {
	ID      string `json:"id,omitempty"`
	Subject string `json:"sub,omitempty"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
}

// UserID resolves the account reference: primary id first, then the token
// subject, else empty for anonymous.
func (i *Identity) UserID() string {
	if i == nil {
		return ""
	}
	if i.ID != "" {
		return i.ID
	}
	return i.Subject
}

// DisplayName returns the account's name, falling back to "Admin" the way the
// owner quick-join path expects.
func (i *Identity) DisplayName() string {
	if i == nil || i.Name == "" {
		return "Admin"
	}
	return i.Name
}
