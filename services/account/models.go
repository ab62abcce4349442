package account

import "time"

// Account is the stored record at account:<username>. The username is
// lowercase-normalized, unique, and immutable once registered.
type Account struct {
	Username   string     `json:"username"`
	CreatedAt  time.Time  `json:"created_at"`
	LastActive time.Time  `json:"last_active"`
	Banned     bool       `json:"banned"`
	BanReason  string     `json:"ban_reason,omitempty"`
	BannedAt   *time.Time `json:"banned_at,omitempty"`
}
