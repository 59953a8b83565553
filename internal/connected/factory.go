package connected

import "strings"

// Reconcile mergea los tres streams de registros (devices, clients OAuth,
// sesiones) en el set único de AttachedClient. El orden de merge es parte
// del contrato: decide qué stream gana los defaults de cada campo.
// Es una función pura: nunca muta los registros fuente.
func Reconcile(devices []AttachedDevice, oauthClients []AttachedOAuthClient, sessions []AttachedSession, callerSessionTokenID string) []*AttachedClient {
	f := &factory{
		bySessionTokenID: make(map[string]*AttachedClient),
		byRefreshTokenID: make(map[string]*AttachedClient),
	}

	f.mergeDevices(devices)
	f.mergeOAuthClients(oauthClients)
	f.mergeSessions(sessions, callerSessionTokenID)

	// Ajustes finales de display.
	for _, c := range f.clients {
		if c.DeviceID != nil && c.DeviceType == "" {
			c.DeviceType = "desktop"
		}
		c.Name = strings.ReplaceAll(c.Name, "Mac OS X", "macOS")
	}
	return f.clients
}

type factory struct {
	bySessionTokenID map[string]*AttachedClient
	byRefreshTokenID map[string]*AttachedClient
	clients          []*AttachedClient
}

// mergeDevices siembra un client por cada device durable. Indexa por
// session token y refresh token para los merges posteriores.
func (f *factory) mergeDevices(devices []AttachedDevice) {
	for i := range devices {
		d := devices[i]
		last := d.CreatedAt
		if d.LastAccessTime > last {
			last = d.LastAccessTime
		}
		c := &AttachedClient{
			DeviceID:       strPtr(d.ID),
			SessionTokenID: d.SessionTokenID,
			// RefreshTokenID puede ser un puntero colgante: no se setea
			// hasta confirmar que el token existe en el stream OAuth.
			RefreshTokenID: nil,
			Name:           deref(d.Name),
			DeviceType:     deref(d.Type),
			CreatedTime:    d.CreatedAt,
			LastAccessTime: last,
		}
		f.clients = append(f.clients, c)
		if d.SessionTokenID != nil && *d.SessionTokenID != "" {
			f.bySessionTokenID[*d.SessionTokenID] = c
		}
		if d.RefreshTokenID != nil && *d.RefreshTokenID != "" {
			f.byRefreshTokenID[*d.RefreshTokenID] = c
		}
	}
}

// mergeOAuthClients adjunta cada autorización OAuth al client sembrado por
// su device, o crea uno nuevo si no hay device emparejado.
func (f *factory) mergeOAuthClients(oauthClients []AttachedOAuthClient) {
	for i := range oauthClients {
		oc := oauthClients[i]
		c := f.byRefreshTokenID[oc.RefreshTokenID]
		if c != nil {
			c.RefreshTokenID = strPtr(oc.RefreshTokenID)
		} else {
			c = &AttachedClient{
				RefreshTokenID: strPtrOrNil(oc.RefreshTokenID),
				CreatedTime:    oc.CreatedTime,
				LastAccessTime: oc.LastAccessTime,
			}
			f.clients = append(f.clients, c)
			if oc.RefreshTokenID != "" {
				f.byRefreshTokenID[oc.RefreshTokenID] = c
			}
		}
		c.ClientID = strPtr(oc.ClientID)
		c.Scope = oc.Scope
		if oc.CreatedTime < c.CreatedTime {
			c.CreatedTime = oc.CreatedTime
		}
		if oc.LastAccessTime > c.LastAccessTime {
			c.LastAccessTime = oc.LastAccessTime
		}
		// El nombre del client OAuth es default; el device record puede
		// haberlo pisado al registrarse.
		if c.Name == "" {
			c.Name = oc.ClientName
		}
		// Asumimos que un client OAuth con device record es una app mobile
		// salvo que el device diga otra cosa.
		if c.DeviceID != nil && c.DeviceType == "" {
			c.DeviceType = "mobile"
		}
	}
}

// mergeSessions aplica las sesiones al final: son autoritativas para
// location, os, userAgent y scope (tener session token implica acceso
// total, pisa cualquier scope OAuth más angosto).
func (f *factory) mergeSessions(sessions []AttachedSession, callerSessionTokenID string) {
	for i := range sessions {
		s := sessions[i]
		c := f.bySessionTokenID[s.ID]
		if c == nil {
			c = &AttachedClient{
				SessionTokenID: strPtr(s.ID),
				CreatedTime:    s.CreatedAt,
			}
			f.clients = append(f.clients, c)
			f.bySessionTokenID[s.ID] = c
		}
		if s.CreatedAt < c.CreatedTime {
			c.CreatedTime = s.CreatedAt
		}
		if s.LastAccessTime > c.LastAccessTime {
			c.LastAccessTime = s.LastAccessTime
		}
		if c.SessionTokenID != nil && *c.SessionTokenID == callerSessionTokenID {
			c.IsCurrentSession = true
		}
		c.Scope = nil
		if s.Location != nil {
			loc := *s.Location
			c.Location = &loc
		} else {
			c.Location = nil
		}
		c.OS = s.UAOS
		switch {
		case s.UABrowser == "":
			c.UserAgent = ""
		case s.UABrowserVersion == "":
			c.UserAgent = s.UABrowser
		default:
			c.UserAgent = s.UABrowser + " " + majorVersion(s.UABrowserVersion)
		}
		if c.Name == "" {
			c.Name = SynthesizeClientName(s)
		}
	}
}

func strPtr(s string) *string { return &s }

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
