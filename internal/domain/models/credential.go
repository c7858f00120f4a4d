package models

import "time"

type Credential struct {
	ID            int
	Provider      string
	ClientID      string
	ClientSecret  string
	Active        bool `gorm:"default:true"`
	UsageCount    int64
	LastUsedAt    time.Time
	RateLimitedAt time.Time
	CreatedAt     time.Time
}

// RateLimited reports whether the credential was marked limited within the
// given window.
func (c Credential) RateLimited(window time.Duration, now time.Time) bool {
	if c.RateLimitedAt.IsZero() {
		return false
	}
	return now.Sub(c.RateLimitedAt) < window
}
