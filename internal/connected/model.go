// Package connected implementa el motor de agregación de attached clients:
// reconcilia devices, sesiones y clients OAuth de un usuario en una lista
// única, formateada y revocable.
package connected

import "github.com/dropDatabas3/attachedclients/internal/domain/repository"

// AttachedClient es el registro unificado listo para display. Exactamente
// el subconjunto de identificadores relevante a cómo se conectó el client
// es no-nil.
type AttachedClient struct {
	ClientID       *string `json:"clientId"`
	DeviceID       *string `json:"deviceId"`
	SessionTokenID *string `json:"sessionTokenId"`
	RefreshTokenID *string `json:"refreshTokenId"`

	IsCurrentSession bool `json:"isCurrentSession"`

	Name       string `json:"name"`
	DeviceType string `json:"deviceType,omitempty"`

	// Scope nil significa grant implícito total (el client tiene un
	// session token). Si no, es la unión de scopes OAuth vistos.
	Scope []string `json:"scope"`

	Location  *repository.Location `json:"location"`
	UserAgent string               `json:"userAgent"`
	OS        string               `json:"os,omitempty"`

	// Epoch milisegundos.
	CreatedTime    int64 `json:"createdTime"`
	LastAccessTime int64 `json:"lastAccessTime"`

	CreatedTimeFormatted    string `json:"createdTimeFormatted,omitempty"`
	LastAccessTimeFormatted string `json:"lastAccessTimeFormatted,omitempty"`

	// Solo poblados cuando LastAccessTime es anterior al piso configurado
	// (earliest sane access time); el valor crudo se mantiene para el sort.
	ApproximateLastAccessTime          int64  `json:"approximateLastAccessTime,omitempty"`
	ApproximateLastAccessTimeFormatted string `json:"approximateLastAccessTimeFormatted,omitempty"`
}

// AttachedDevice es la vista intermedia de un device durable ya mergeada
// con la metadata cache-resident de su session token (si existe).
type AttachedDevice struct {
	ID             string
	UID            string
	SessionTokenID *string
	RefreshTokenID *string
	Name           *string
	Type           *string
	CreatedAt      int64 // epoch ms
	LastAccessTime int64 // epoch ms
	Location       *repository.Location
}

// AttachedSession es la vista intermedia de una sesión: fila durable más
// frescura del cache cuando hay entry para el token.
type AttachedSession struct {
	ID               string
	CreatedAt        int64 // epoch ms
	LastAccessTime   int64 // epoch ms
	UABrowser        string
	UABrowserVersion string
	UAOS             string
	UAOSVersion      string
	UAFormFactor     string
	Location         *repository.Location
}

// AttachedOAuthClient es la vista intermedia de una autorización OAuth
// (un refresh token durable, con last_access refrescado desde cache).
type AttachedOAuthClient struct {
	RefreshTokenID string
	ClientID       string
	ClientName     string
	Scope          []string
	CreatedTime    int64 // epoch ms
	LastAccessTime int64 // epoch ms
}

// AuthorizedClient es un registro de la vista "authorized clients":
// relación puramente OAuth, sin merge de devices/sesiones.
type AuthorizedClient struct {
	ClientID       string   `json:"client_id"`
	RefreshTokenID *string  `json:"refresh_token_id,omitempty"`
	ClientName     string   `json:"client_name"`
	CreatedTime    int64    `json:"created_time"`
	LastAccessTime int64    `json:"last_access_time"`
	Scope          []string `json:"scope"`
}
