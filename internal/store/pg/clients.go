package pg

import (
	"context"
	"encoding/json"

	"github.com/dropDatabas3/attachedclients/internal/domain/repository"
)

// Compile-time check: *Store satisface ClientStore.
var _ repository.ClientStore = (*Store)(nil)

func (s *Store) FindDevicesByUID(ctx context.Context, uid string) ([]repository.Device, error) {
	const q = `
		SELECT id, uid, session_token_id, refresh_token_id, name, type, created_at
		FROM devices
		WHERE uid = $1`
	rows, err := s.pool.Query(ctx, q, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []repository.Device{}
	for rows.Next() {
		var d repository.Device
		if err := rows.Scan(&d.ID, &d.UID, &d.SessionTokenID, &d.RefreshTokenID, &d.Name, &d.Type, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) FindSessionsByUID(ctx context.Context, uid string) ([]repository.Session, error) {
	const q = `
		SELECT token_id, uid, created_at, last_access_at,
		       COALESCE(ua_browser,''), COALESCE(ua_browser_version,''),
		       COALESCE(ua_os,''), COALESCE(ua_os_version,''),
		       COALESCE(ua_form_factor,''), location
		FROM sessions
		WHERE uid = $1`
	rows, err := s.pool.Query(ctx, q, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []repository.Session{}
	for rows.Next() {
		var sess repository.Session
		var loc []byte
		if err := rows.Scan(&sess.ID, &sess.UID, &sess.CreatedAt, &sess.LastAccessAt,
			&sess.UABrowser, &sess.UABrowserVersion, &sess.UAOS, &sess.UAOSVersion,
			&sess.UAFormFactor, &loc); err != nil {
			return nil, err
		}
		if len(loc) > 0 {
			var l repository.Location
			if err := json.Unmarshal(loc, &l); err == nil {
				sess.Location = &l
			}
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) FindRefreshTokensByUID(ctx context.Context, uid string) ([]repository.RefreshToken, error) {
	const q = `
		SELECT rt.token_id, rt.uid, rt.client_id, COALESCE(c.name,''), rt.scope,
		       rt.created_at, rt.last_used_at
		FROM refresh_tokens rt
		JOIN oauth_clients c ON c.id = rt.client_id
		WHERE rt.uid = $1`
	rows, err := s.pool.Query(ctx, q, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []repository.RefreshToken{}
	for rows.Next() {
		var t repository.RefreshToken
		if err := rows.Scan(&t.ID, &t.UID, &t.ClientID, &t.ClientName, &t.Scope,
			&t.CreatedAt, &t.LastUsedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) FindAccessTokensByUID(ctx context.Context, uid string) ([]repository.AccessToken, error) {
	const q = `
		SELECT at.token_id, at.uid, at.client_id, COALESCE(c.name,''), at.scope,
		       at.created_at, at.expires_at, c.can_grant
		FROM access_tokens at
		JOIN oauth_clients c ON c.id = at.client_id
		WHERE at.uid = $1 AND at.expires_at > NOW()`
	rows, err := s.pool.Query(ctx, q, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []repository.AccessToken{}
	for rows.Next() {
		var t repository.AccessToken
		if err := rows.Scan(&t.ID, &t.UID, &t.ClientID, &t.ClientName, &t.Scope,
			&t.CreatedAt, &t.ExpiresAt, &t.ClientCanGrant); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) DeleteDevice(ctx context.Context, uid, deviceID string) error {
	const q = `DELETE FROM devices WHERE uid = $1 AND id = $2`
	ct, err := s.pool.Exec(ctx, q, uid, deviceID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, uid, sessionTokenID string) error {
	const q = `DELETE FROM sessions WHERE uid = $1 AND token_id = $2`
	ct, err := s.pool.Exec(ctx, q, uid, sessionTokenID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteRefreshToken(ctx context.Context, uid, tokenID string) error {
	const q = `DELETE FROM refresh_tokens WHERE uid = $1 AND token_id = $2`
	ct, err := s.pool.Exec(ctx, q, uid, tokenID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAccessTokensByUserAndClient(ctx context.Context, uid, clientID string) (int, error) {
	const q = `DELETE FROM access_tokens WHERE uid = $1 AND client_id = $2`
	ct, err := s.pool.Exec(ctx, q, uid, clientID)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}
