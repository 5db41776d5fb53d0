package apikey

import "time"

// APIKey authorizes a recording workstation against the ingestion and
// streaming surfaces. The secret is returned once at creation; only its hash
// is stored.
type APIKey struct {
	ID         string     `gorm:"primaryKey" json:"id"`
	Label      string     `gorm:"not null" json:"label"`
	Prefix     string     `gorm:"uniqueIndex;not null" json:"-"`
	SecretHash string     `gorm:"not null" json:"-"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (k *APIKey) IsExpired() bool {
	if k.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*k.ExpiresAt)
}
