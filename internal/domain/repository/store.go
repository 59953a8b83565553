package repository

import "context"

// ClientStore define las lecturas durables que consume el agregador y los
// deletes que usa la revocación. Los métodos Find* retornan slices vacíos
// (nunca nil error) cuando no hay filas; solo fallan por problemas de
// conectividad o integridad contra la base.
type ClientStore interface {
	// FindDevicesByUID lista los devices emparejados a la cuenta.
	FindDevicesByUID(ctx context.Context, uid string) ([]Device, error)

	// FindSessionsByUID lista las sesiones activas de la cuenta.
	FindSessionsByUID(ctx context.Context, uid string) ([]Session, error)

	// FindRefreshTokensByUID lista los refresh tokens vigentes de la cuenta.
	FindRefreshTokensByUID(ctx context.Context, uid string) ([]RefreshToken, error)

	// FindAccessTokensByUID lista los access tokens durables de la cuenta.
	FindAccessTokensByUID(ctx context.Context, uid string) ([]AccessToken, error)

	// DeleteDevice elimina un device. Retorna ErrNotFound si no existe.
	DeleteDevice(ctx context.Context, uid, deviceID string) error

	// DeleteSession elimina una sesión por su session token id.
	// Retorna ErrNotFound si no existe.
	DeleteSession(ctx context.Context, uid, sessionTokenID string) error

	// DeleteRefreshToken elimina un refresh token por su id.
	// Retorna ErrNotFound si no existe.
	DeleteRefreshToken(ctx context.Context, uid, tokenID string) error

	// DeleteAccessTokensByUserAndClient elimina los access tokens durables
	// de un usuario para un client. Retorna el número de filas eliminadas.
	DeleteAccessTokensByUserAndClient(ctx context.Context, uid, clientID string) (int, error)
}
