package repository

import (
	"encoding/json"
	"time"
)

// RefreshToken representa una autorización OAuth durable.
type RefreshToken struct {
	ID         string // token id
	UID        string
	ClientID   string
	ClientName string
	Scope      []string
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// AccessToken representa un access token durable (clients sin refresh token).
type AccessToken struct {
	ID             string
	UID            string
	ClientID       string
	ClientName     string
	Scope          []string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	ClientCanGrant bool
}

// ─── Registros residentes en cache ───

// RefreshTokenMeta es la metadata cache-resident de un refresh token.
// Se sobreescribe en cada uso del token y solo aporta frescura de
// last_access_time sobre el registro durable.
type RefreshTokenMeta struct {
	LastUsedAt time.Time
}

// MarshalJSON serializa como {"lastUsedAt": <epoch ms>}.
func (m RefreshTokenMeta) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]int64{"lastUsedAt": m.LastUsedAt.UnixMilli()})
}

// UnmarshalJSON parsea {"lastUsedAt": <epoch ms>}.
func (m *RefreshTokenMeta) UnmarshalJSON(b []byte) error {
	var raw struct {
		LastUsedAt int64 `json:"lastUsedAt"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	m.LastUsedAt = time.UnixMilli(raw.LastUsedAt)
	return nil
}

// SessionTokenMeta es la metadata cache-resident de un session token.
// Es más fresca que la fila durable: se actualiza en cada request de la
// sesión sin tocar la base.
type SessionTokenMeta struct {
	ID               string    `json:"id"`
	LastAccessTime   int64     `json:"lastAccessTime"` // epoch ms
	UABrowser        string    `json:"uaBrowser,omitempty"`
	UABrowserVersion string    `json:"uaBrowserVersion,omitempty"`
	UAOS             string    `json:"uaOS,omitempty"`
	UAOSVersion      string    `json:"uaOSVersion,omitempty"`
	UAFormFactor     string    `json:"uaFormFactor,omitempty"`
	UADeviceType     string    `json:"uaDeviceType,omitempty"`
	Location         *Location `json:"location,omitempty"`
}

// CachedAccessToken es un access token residente en cache, con índice
// por usuario y tope de registros (record limit).
type CachedAccessToken struct {
	TokenID        string   `json:"tokenId"`
	UID            string   `json:"uid"`
	ClientID       string   `json:"clientId"`
	ClientName     string   `json:"clientName"`
	Scope          []string `json:"scope"`
	CreatedAt      int64    `json:"createdAt"` // epoch ms
	TTL            int64    `json:"ttl"`       // segundos
	ClientCanGrant bool     `json:"clientCanGrant,omitempty"`
}
