package repository

import "context"

// CacheScope identifica el propósito lógico de un segmento del token cache.
// Cada scope tiene su propio prefijo de claves y su propio layout.
type CacheScope string

const (
	ScopeSessionTokens CacheScope = "session"
	ScopeRefreshTokens CacheScope = "refresh"
	ScopeAccessTokens  CacheScope = "access"
)

// TokenCache define el cache de metadata de tokens de corta vida.
//
// Contrato de fallas: TODAS las lecturas degradan a su fallback (mapa/slice
// vacío, nil) ante timeout, rechazo por admisión o cache deshabilitado;
// nunca propagan el error al caller. Las escrituras son best-effort y
// fallan en silencio (se loguean, no se propagan). Solo el store durable
// es autoritativo.
type TokenCache interface {
	// ─── Session tokens ───

	// GetSessionTokens retorna la metadata fresca de las sesiones del
	// usuario, indexada por session token id. Fallback: mapa vacío.
	GetSessionTokens(ctx context.Context, uid string) map[string]SessionTokenMeta

	// TouchSessionToken actualiza la metadata de una sesión en cada request.
	TouchSessionToken(ctx context.Context, uid string, meta SessionTokenMeta)

	// RemoveSessionToken elimina la metadata de una sesión. Idempotente.
	RemoveSessionToken(ctx context.Context, uid, tokenID string)

	// ─── Refresh tokens ───

	// GetRefreshTokens retorna la metadata de refresh tokens del usuario,
	// indexada por token id. Fallback: mapa vacío.
	GetRefreshTokens(ctx context.Context, uid string) map[string]RefreshTokenMeta

	// TouchRefreshToken registra un uso del refresh token (lastUsedAt=now).
	TouchRefreshToken(ctx context.Context, uid, tokenID string)

	// RemoveRefreshToken elimina la metadata de un refresh token. Idempotente.
	RemoveRefreshToken(ctx context.Context, uid, tokenID string)

	// RemoveRefreshTokensForUser elimina toda la metadata de refresh del usuario.
	RemoveRefreshTokensForUser(ctx context.Context, uid string)

	// ─── Access tokens ───

	// GetAccessTokens lista los access tokens cache-resident del usuario.
	// Fallback: slice vacío.
	GetAccessTokens(ctx context.Context, uid string) []CachedAccessToken

	// GetAccessToken busca un access token por id. Fallback: nil.
	GetAccessToken(ctx context.Context, tokenID string) *CachedAccessToken

	// SetAccessToken guarda un access token respetando record limit y TTLs.
	// Si el TTL efectivo está debajo del mínimo configurado, no guarda.
	SetAccessToken(ctx context.Context, tok CachedAccessToken)

	// RemoveAccessToken elimina un access token por id. Retorna true si existía.
	RemoveAccessToken(ctx context.Context, tokenID string) bool

	// RemoveAccessTokensForUser elimina todos los access tokens del usuario.
	RemoveAccessTokensForUser(ctx context.Context, uid string)

	// RemoveAccessTokensForUserAndClient elimina los access tokens del
	// usuario para un client específico.
	RemoveAccessTokensForUserAndClient(ctx context.Context, uid, clientID string)

	// ─── Reconciliación ───

	// PruneStale elimina entradas del scope cuyo id no está en knownValid.
	// Se usa para limpiar huérfanos detectados tras un read durable.
	// Retorna el número de entradas eliminadas (0 en degradación).
	PruneStale(ctx context.Context, scope CacheScope, uid string, knownValid []string) int
}
