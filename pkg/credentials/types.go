package credentials

import "time"

// Slot names shared by every Backend.
const (
	SlotAccessToken  = "access_token"
	SlotRefreshToken = "refresh_token"
	SlotExpiresAt    = "expires_at"
)

// Record is the access/refresh credential pair and its expiry.
// A nil ExpiresAt means the credential never expires locally; the server
// remains authoritative.
type Record struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// NewRecord builds a Record whose expiry is expiresIn after now.
// A non-positive expiresIn leaves the expiry unset.
func NewRecord(accessToken, refreshToken string, expiresIn time.Duration, now time.Time) Record {
	rec := Record{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	if expiresIn > 0 {
		at := now.Add(expiresIn)
		rec.ExpiresAt = &at
	}
	return rec
}

// Slots is the persisted form of a Record: three string-keyed values.
// Empty strings mean the slot is unset.
type Slots struct {
	AccessToken  string `toml:"access_token,omitempty"`
	RefreshToken string `toml:"refresh_token,omitempty"`
	ExpiresAt    string `toml:"expires_at,omitempty"`
}

// IsZero reports whether no slot is set.
func (s Slots) IsZero() bool {
	return s == Slots{}
}

// Backend persists Slots. Store must replace all three slots as one unit.
type Backend interface {
	Load() (Slots, error)
	Store(slots Slots) error
	Clear() error
}
