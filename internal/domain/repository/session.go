package repository

import "time"

// Session representa una sesión activa (browser/app) persistida.
// El ID es el id del session token.
type Session struct {
	ID  string
	UID string

	CreatedAt    time.Time
	LastAccessAt time.Time

	// Metadata de user-agent parseada al crear la sesión.
	UABrowser        string
	UABrowserVersion string
	UAOS             string
	UAOSVersion      string
	UAFormFactor     string

	Location *Location
}
