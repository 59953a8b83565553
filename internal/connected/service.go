package connected

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/attachedclients/internal/domain/repository"
	"github.com/dropDatabas3/attachedclients/internal/metrics"
	"github.com/dropDatabas3/attachedclients/internal/observability/logger"
)

// Service es el agregador: orquesta store durable + token cache →
// reconciliación → formato → orden, y coordina la revocación.
type Service struct {
	store     repository.ClientStore
	cache     repository.TokenCache
	formatter *Formatter
	log       *zap.SugaredLogger
}

func NewService(store repository.ClientStore, cache repository.TokenCache, formatter *Formatter) *Service {
	return &Service{
		store:     store,
		cache:     cache,
		formatter: formatter,
		log:       logger.Named("connected").Sugar(),
	}
}

// List produce la lista ordenada de attached clients del usuario.
// Las tres lecturas durables y las dos de cache corren concurrentes;
// la reconciliación es un paso puro sobre datos ya traídos. Solo las
// fallas del store durable son fatales: el cache degrada en silencio.
func (s *Service) List(ctx context.Context, uid, callerSessionTokenID, acceptLanguage string) ([]*AttachedClient, error) {
	start := time.Now()

	var (
		deviceRows  []repository.Device
		sessionRows []repository.Session
		refreshRows []repository.RefreshToken
		accessRows  []repository.AccessToken

		sessionMetas map[string]repository.SessionTokenMeta
		refreshMetas map[string]repository.RefreshTokenMeta
		cachedAccess []repository.CachedAccessToken
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		deviceRows, err = s.store.FindDevicesByUID(gctx, uid)
		return err
	})
	g.Go(func() (err error) {
		sessionRows, err = s.store.FindSessionsByUID(gctx, uid)
		return err
	})
	g.Go(func() (err error) {
		refreshRows, err = s.store.FindRefreshTokensByUID(gctx, uid)
		return err
	})
	g.Go(func() (err error) {
		accessRows, err = s.store.FindAccessTokensByUID(gctx, uid)
		return err
	})
	g.Go(func() error {
		sessionMetas = s.cache.GetSessionTokens(gctx, uid)
		return nil
	})
	g.Go(func() error {
		refreshMetas = s.cache.GetRefreshTokens(gctx, uid)
		return nil
	})
	g.Go(func() error {
		cachedAccess = s.cache.GetAccessTokens(gctx, uid)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	devices := buildDevices(deviceRows, sessionMetas)
	sessions := buildSessions(sessionRows, sessionMetas)
	oauthClients := s.buildOAuthClients(ctx, uid, refreshRows, refreshMetas)
	oauthClients = append(oauthClients, groupAccessOnlyClients(refreshRows, accessRows, cachedAccess)...)

	clients := Reconcile(devices, oauthClients, sessions, callerSessionTokenID)
	for _, c := range clients {
		s.formatter.FormatTimestamps(c, acceptLanguage)
		s.formatter.FormatLocation(c, acceptLanguage)
	}
	sortClients(clients)

	metrics.AggregationLatency.Observe(float64(time.Since(start).Milliseconds()))
	return clients, nil
}

// buildDevices mergea cada device durable con la metadata cache-resident
// de su session token: el cache aporta last access y location más frescos
// que la fila.
func buildDevices(rows []repository.Device, metas map[string]repository.SessionTokenMeta) []AttachedDevice {
	out := make([]AttachedDevice, 0, len(rows))
	for _, d := range rows {
		ad := AttachedDevice{
			ID:             d.ID,
			UID:            d.UID,
			SessionTokenID: d.SessionTokenID,
			RefreshTokenID: d.RefreshTokenID,
			Name:           d.Name,
			Type:           d.Type,
			CreatedAt:      d.CreatedAt.UnixMilli(),
		}
		if d.SessionTokenID != nil {
			if meta, ok := metas[*d.SessionTokenID]; ok {
				ad.LastAccessTime = meta.LastAccessTime
				ad.Location = meta.Location
			}
		}
		out = append(out, ad)
	}
	return out
}

// buildSessions parte de las filas durables y deja que la metadata del
// cache pise last access, location y user-agent cuando existe entry.
func buildSessions(rows []repository.Session, metas map[string]repository.SessionTokenMeta) []AttachedSession {
	out := make([]AttachedSession, 0, len(rows))
	for _, r := range rows {
		as := AttachedSession{
			ID:               r.ID,
			CreatedAt:        r.CreatedAt.UnixMilli(),
			LastAccessTime:   r.LastAccessAt.UnixMilli(),
			UABrowser:        r.UABrowser,
			UABrowserVersion: r.UABrowserVersion,
			UAOS:             r.UAOS,
			UAOSVersion:      r.UAOSVersion,
			UAFormFactor:     r.UAFormFactor,
			Location:         r.Location,
		}
		if meta, ok := metas[r.ID]; ok {
			if meta.LastAccessTime > as.LastAccessTime {
				as.LastAccessTime = meta.LastAccessTime
			}
			if meta.Location != nil {
				as.Location = meta.Location
			}
			if meta.UABrowser != "" {
				as.UABrowser = meta.UABrowser
				as.UABrowserVersion = meta.UABrowserVersion
			}
			if meta.UAOS != "" {
				as.UAOS = meta.UAOS
				as.UAOSVersion = meta.UAOSVersion
			}
			if meta.UAFormFactor != "" {
				as.UAFormFactor = meta.UAFormFactor
			}
		}
		out = append(out, as)
	}
	return out
}

// buildOAuthClients combina refresh tokens durables con la frescura del
// cache y aprovecha el read para podar huérfanos (entries en cache sin
// fila durable). La poda es best effort: nunca afecta el resultado.
func (s *Service) buildOAuthClients(ctx context.Context, uid string, rows []repository.RefreshToken, metas map[string]repository.RefreshTokenMeta) []AttachedOAuthClient {
	out := make([]AttachedOAuthClient, 0, len(rows))
	valid := make([]string, 0, len(rows))
	for _, t := range rows {
		valid = append(valid, t.ID)
		last := t.LastUsedAt.UnixMilli()
		if meta, ok := metas[t.ID]; ok {
			if m := meta.LastUsedAt.UnixMilli(); m > last {
				last = m
			}
		}
		out = append(out, AttachedOAuthClient{
			RefreshTokenID: t.ID,
			ClientID:       t.ClientID,
			ClientName:     t.ClientName,
			Scope:          t.Scope,
			CreatedTime:    t.CreatedAt.UnixMilli(),
			LastAccessTime: last,
		})
	}

	hasOrphan := false
	validSet := make(map[string]bool, len(rows))
	for _, t := range rows {
		validSet[t.ID] = true
	}
	for id := range metas {
		if !validSet[id] {
			hasOrphan = true
			break
		}
	}
	if hasOrphan {
		if n := s.cache.PruneStale(ctx, repository.ScopeRefreshTokens, uid, valid); n > 0 {
			s.log.Debugw("pruned orphaned refresh token metadata", "uid", uid, "count", n)
		}
	}
	return out
}

// groupAccessOnlyClients agrupa por client los access tokens cuyo client
// no tiene refresh token: cada grupo aparece como un único client OAuth
// sin refresh token id, con la unión de scopes, created mínimo y last
// access máximo. Los clients con can_grant se excluyen (emiten sus
// propios refresh tokens y ya aparecen por esa vía).
func groupAccessOnlyClients(refreshRows []repository.RefreshToken, accessRows []repository.AccessToken, cached []repository.CachedAccessToken) []AttachedOAuthClient {
	seen := make(map[string]bool, len(refreshRows))
	for _, t := range refreshRows {
		seen[t.ClientID] = true
	}

	type group struct {
		clientName string
		created    int64
		last       int64
		scopes     map[string]bool
	}
	groups := map[string]*group{}
	order := []string{}

	add := func(clientID, clientName string, createdAt int64, canGrant bool, scope []string) {
		if seen[clientID] || canGrant {
			return
		}
		rec := groups[clientID]
		if rec == nil {
			rec = &group{
				clientName: clientName,
				created:    createdAt,
				last:       createdAt,
				scopes:     map[string]bool{},
			}
			groups[clientID] = rec
			order = append(order, clientID)
		}
		for _, sc := range scope {
			rec.scopes[sc] = true
		}
		if createdAt < rec.created {
			rec.created = createdAt
		}
		if createdAt > rec.last {
			rec.last = createdAt
		}
	}
	for _, t := range cached {
		add(t.ClientID, t.ClientName, t.CreatedAt, t.ClientCanGrant, t.Scope)
	}
	for _, t := range accessRows {
		add(t.ClientID, t.ClientName, t.CreatedAt.UnixMilli(), t.ClientCanGrant, t.Scope)
	}

	out := make([]AttachedOAuthClient, 0, len(order))
	for _, clientID := range order {
		rec := groups[clientID]
		scopes := make([]string, 0, len(rec.scopes))
		for sc := range rec.scopes {
			scopes = append(scopes, sc)
		}
		out = append(out, AttachedOAuthClient{
			ClientID:       clientID,
			ClientName:     rec.clientName,
			Scope:          sortedScopes(scopes),
			CreatedTime:    rec.created,
			LastAccessTime: rec.last,
		})
	}
	return out
}

// RevocationSelector identifica un client a revocar por los ids que el
// caller conoce del registro agregado. Al menos uno debe estar presente.
type RevocationSelector struct {
	DeviceID       string
	SessionTokenID string
	RefreshTokenID string

	// ClientID habilita el fan-out sobre access tokens del client cuando
	// se revoca por refresh token.
	ClientID string
}

func (sel RevocationSelector) kind() string {
	switch {
	case sel.DeviceID != "":
		return "device"
	case sel.RefreshTokenID != "":
		return "refresh_token"
	case sel.SessionTokenID != "":
		return "session"
	default:
		return "none"
	}
}

// Revoke elimina los tokens que respaldan un client. El delete durable es
// autoritativo; la limpieza de cache es best effort (una entry rezagada se
// auto-sana vía la próxima poda o por TTL). No hay transacción entre
// ambos stores. Retorna ErrNotFound si el selector no matchea nada: la
// segunda revocación del mismo client reporta not-found, nunca falla.
func (s *Service) Revoke(ctx context.Context, uid string, sel RevocationSelector) error {
	if sel.DeviceID == "" && sel.SessionTokenID == "" && sel.RefreshTokenID == "" {
		return repository.ErrInvalidInput
	}

	found := false

	if sel.DeviceID != "" {
		switch err := s.store.DeleteDevice(ctx, uid, sel.DeviceID); {
		case err == nil:
			found = true
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}
	}

	if sel.RefreshTokenID != "" {
		switch err := s.store.DeleteRefreshToken(ctx, uid, sel.RefreshTokenID); {
		case err == nil:
			found = true
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}
		s.cache.RemoveRefreshToken(ctx, uid, sel.RefreshTokenID)
		if sel.ClientID != "" {
			if _, err := s.store.DeleteAccessTokensByUserAndClient(ctx, uid, sel.ClientID); err != nil {
				return err
			}
			s.cache.RemoveAccessTokensForUserAndClient(ctx, uid, sel.ClientID)
		}
	}

	if sel.SessionTokenID != "" {
		switch err := s.store.DeleteSession(ctx, uid, sel.SessionTokenID); {
		case err == nil:
			found = true
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}
		s.cache.RemoveSessionToken(ctx, uid, sel.SessionTokenID)
	}

	if !found {
		metrics.RevocationsTotal.WithLabelValues(sel.kind(), "not_found").Inc()
		return repository.ErrNotFound
	}
	metrics.RevocationsTotal.WithLabelValues(sel.kind(), "revoked").Inc()
	s.log.Infow("client revoked", "uid", uid, "selector", sel.kind())
	return nil
}

// ListAuthorizedClients produce la vista puramente OAuth: cada refresh
// token es un client autorizado aparte; los access tokens sin refresh
// token se agrupan por client con unión de scopes; los clients capaces
// del grant de refresh (can_grant) se excluyen para no listar doble.
func (s *Service) ListAuthorizedClients(ctx context.Context, uid string) ([]AuthorizedClient, error) {
	var (
		refreshRows []repository.RefreshToken
		accessRows  []repository.AccessToken
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		refreshRows, err = s.store.FindRefreshTokensByUID(gctx, uid)
		return err
	})
	g.Go(func() (err error) {
		accessRows, err = s.store.FindAccessTokensByUID(gctx, uid)
		return err
	})
	metas := s.cache.GetRefreshTokens(ctx, uid)
	cached := s.cache.GetAccessTokens(ctx, uid)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := []AuthorizedClient{}

	// Cada refresh token es una instancia separada de client autorizado.
	for _, t := range refreshRows {
		last := t.LastUsedAt.UnixMilli()
		if meta, ok := metas[t.ID]; ok {
			if m := meta.LastUsedAt.UnixMilli(); m > last {
				last = m
			}
		}
		out = append(out, AuthorizedClient{
			ClientID:       t.ClientID,
			RefreshTokenID: strPtr(t.ID),
			ClientName:     t.ClientName,
			CreatedTime:    t.CreatedAt.UnixMilli(),
			LastAccessTime: last,
			Scope:          sortedScopes(t.Scope),
		})
	}

	// Access tokens sin refresh token: un registro unificado por client.
	for _, oc := range groupAccessOnlyClients(refreshRows, accessRows, cached) {
		out = append(out, AuthorizedClient{
			ClientID:       oc.ClientID,
			ClientName:     oc.ClientName,
			CreatedTime:    oc.CreatedTime,
			LastAccessTime: oc.LastAccessTime,
			Scope:          oc.Scope,
		})
	}

	sortAuthorizedClients(out)
	return out, nil
}
