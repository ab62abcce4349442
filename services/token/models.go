package token

import "time"

// tokenRecord is the stored value under token:user:<username>:<token>. The
// key's existence is the validity signal; the record only carries metadata.
type tokenRecord struct {
	ID       string    `json:"id"`
	IssuedAt time.Time `json:"issued_at"`
}

// graceRecord is the stored value under token:last:<username>: the single
// superseded token still accepted, for refresh only, inside the grace window.
type graceRecord struct {
	Token     string    `json:"token"`
	ExpiredAt time.Time `json:"expired_at"`
}

// ValidationResult is the structured outcome of Validate. Expired is only
// ever true together with Valid, when a superseded token was accepted via the
// grace record.
type ValidationResult struct {
	Valid   bool
	Expired bool
}

// TokenInfo describes a live token for device-management listings without
// disclosing the token itself.
type TokenInfo struct {
	ID       string    `json:"id"`
	Masked   string    `json:"masked"`
	IssuedAt time.Time `json:"issued_at"`
}
