package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dropDatabas3/attachedclients/internal/domain/repository"
	"github.com/dropDatabas3/attachedclients/internal/metrics"
)

// Layout de claves por scope. El id va hex-encoded tal como lo produce el
// emisor de tokens; acá no se re-encodea.
const (
	sessionHashPrefix = "st:"  // hash por uid: field = session token id
	refreshHashPrefix = "rt:"  // hash por uid: field = refresh token id
	accessKeyPrefix   = "at:"  // value por token id
	accessIndexPrefix = "ati:" // zset por uid: índice de access tokens
)

// Cache implementa repository.TokenCache. Todas las lecturas degradan a
// su fallback ante cualquier falla; las escrituras son best-effort.
var _ repository.TokenCache = (*Cache)(nil)

// ─── Session tokens ───

func (c *Cache) GetSessionTokens(ctx context.Context, uid string) map[string]repository.SessionTokenMeta {
	out := map[string]repository.SessionTokenMeta{}
	err := c.do(ctx, string(repository.ScopeSessionTokens), func(ctx context.Context) error {
		raw, err := c.conn.HGetAll(ctx, sessionHashPrefix+uid)
		if err != nil {
			return err
		}
		for id, v := range raw {
			var meta repository.SessionTokenMeta
			if err := json.Unmarshal([]byte(v), &meta); err != nil {
				// valor corrupto = miss, nunca fatal
				metrics.CacheOpErrors.WithLabelValues(string(repository.ScopeSessionTokens), "malformed").Inc()
				c.log.Warnw("malformed session token value", "uid", uid, "token_id", id)
				continue
			}
			meta.ID = id
			out[id] = meta
		}
		return nil
	})
	if err != nil {
		c.log.Debugw("get session tokens fallback", "uid", uid, "err", err)
		return map[string]repository.SessionTokenMeta{}
	}
	return out
}

func (c *Cache) TouchSessionToken(ctx context.Context, uid string, meta repository.SessionTokenMeta) {
	b, err := json.Marshal(meta)
	if err != nil {
		return
	}
	err = c.do(ctx, string(repository.ScopeSessionTokens), func(ctx context.Context) error {
		return c.conn.HSet(ctx, sessionHashPrefix+uid, meta.ID, string(b), c.cfg.RecordLimit, c.cfg.MaxTTL)
	})
	if err != nil {
		c.log.Debugw("touch session token dropped", "uid", uid, "err", err)
	}
}

func (c *Cache) RemoveSessionToken(ctx context.Context, uid, tokenID string) {
	err := c.do(ctx, string(repository.ScopeSessionTokens), func(ctx context.Context) error {
		_, err := c.conn.HDel(ctx, sessionHashPrefix+uid, tokenID)
		return err
	})
	if err != nil {
		c.log.Debugw("remove session token dropped", "uid", uid, "err", err)
	}
}

// ─── Refresh tokens ───

func (c *Cache) GetRefreshTokens(ctx context.Context, uid string) map[string]repository.RefreshTokenMeta {
	out := map[string]repository.RefreshTokenMeta{}
	err := c.do(ctx, string(repository.ScopeRefreshTokens), func(ctx context.Context) error {
		raw, err := c.conn.HGetAll(ctx, refreshHashPrefix+uid)
		if err != nil {
			return err
		}
		for id, v := range raw {
			var meta repository.RefreshTokenMeta
			if err := json.Unmarshal([]byte(v), &meta); err != nil {
				metrics.CacheOpErrors.WithLabelValues(string(repository.ScopeRefreshTokens), "malformed").Inc()
				c.log.Warnw("malformed refresh token value", "uid", uid, "token_id", id)
				continue
			}
			out[id] = meta
		}
		return nil
	})
	if err != nil {
		c.log.Debugw("get refresh tokens fallback", "uid", uid, "err", err)
		return map[string]repository.RefreshTokenMeta{}
	}
	return out
}

func (c *Cache) TouchRefreshToken(ctx context.Context, uid, tokenID string) {
	b, _ := json.Marshal(repository.RefreshTokenMeta{LastUsedAt: time.Now()})
	err := c.do(ctx, string(repository.ScopeRefreshTokens), func(ctx context.Context) error {
		return c.conn.HSet(ctx, refreshHashPrefix+uid, tokenID, string(b), c.cfg.RecordLimit, c.cfg.MaxTTL)
	})
	if err != nil {
		c.log.Debugw("touch refresh token dropped", "uid", uid, "err", err)
	}
}

func (c *Cache) RemoveRefreshToken(ctx context.Context, uid, tokenID string) {
	_ = c.do(ctx, string(repository.ScopeRefreshTokens), func(ctx context.Context) error {
		_, err := c.conn.HDel(ctx, refreshHashPrefix+uid, tokenID)
		return err
	})
}

func (c *Cache) RemoveRefreshTokensForUser(ctx context.Context, uid string) {
	_ = c.do(ctx, string(repository.ScopeRefreshTokens), func(ctx context.Context) error {
		return c.conn.Del(ctx, refreshHashPrefix+uid)
	})
}

// ─── Access tokens ───

func (c *Cache) GetAccessTokens(ctx context.Context, uid string) []repository.CachedAccessToken {
	out := []repository.CachedAccessToken{}
	err := c.do(ctx, string(repository.ScopeAccessTokens), func(ctx context.Context) error {
		values, err := c.conn.IndexedList(ctx, accessIndexPrefix+uid, accessKeyPrefix)
		if err != nil {
			return err
		}
		for _, v := range values {
			var tok repository.CachedAccessToken
			if err := json.Unmarshal([]byte(v), &tok); err != nil {
				metrics.CacheOpErrors.WithLabelValues(string(repository.ScopeAccessTokens), "malformed").Inc()
				c.log.Warnw("malformed access token value", "uid", uid)
				continue
			}
			out = append(out, tok)
		}
		return nil
	})
	if err != nil {
		c.log.Debugw("get access tokens fallback", "uid", uid, "err", err)
		return []repository.CachedAccessToken{}
	}
	return out
}

func (c *Cache) GetAccessToken(ctx context.Context, tokenID string) *repository.CachedAccessToken {
	var out *repository.CachedAccessToken
	err := c.do(ctx, string(repository.ScopeAccessTokens), func(ctx context.Context) error {
		v, err := c.conn.Get(ctx, accessKeyPrefix+tokenID)
		if err != nil {
			return err
		}
		var tok repository.CachedAccessToken
		if err := json.Unmarshal([]byte(v), &tok); err != nil {
			metrics.CacheOpErrors.WithLabelValues(string(repository.ScopeAccessTokens), "malformed").Inc()
			return ErrMalformedValue
		}
		out = &tok
		return nil
	})
	if err != nil {
		return nil
	}
	return out
}

func (c *Cache) SetAccessToken(ctx context.Context, tok repository.CachedAccessToken) {
	ttl := time.Duration(tok.TTL) * time.Second
	if ttl < c.cfg.MinTTL {
		// guardar un token al borde de expirar es trabajo perdido
		c.log.Warnw("access token ttl below minimum, not cached",
			"uid", tok.UID, "client_id", tok.ClientID, "ttl", ttl)
		return
	}
	if ttl > c.cfg.MaxTTL {
		ttl = c.cfg.MaxTTL
	}
	b, err := json.Marshal(tok)
	if err != nil {
		return
	}
	err = c.do(ctx, string(repository.ScopeAccessTokens), func(ctx context.Context) error {
		return c.conn.IndexedSet(ctx,
			accessIndexPrefix+tok.UID, accessKeyPrefix, tok.TokenID, string(b),
			tok.CreatedAt, c.cfg.RecordLimit, ttl, c.cfg.MaxTTL)
	})
	if err != nil {
		c.log.Debugw("set access token dropped", "uid", tok.UID, "err", err)
	}
}

func (c *Cache) RemoveAccessToken(ctx context.Context, tokenID string) bool {
	existed := false
	// No se toca el índice del usuario: IndexedList limpia ids sin value.
	err := c.do(ctx, string(repository.ScopeAccessTokens), func(ctx context.Context) error {
		if _, err := c.conn.Get(ctx, accessKeyPrefix+tokenID); err == nil {
			existed = true
		}
		return c.conn.Del(ctx, accessKeyPrefix+tokenID)
	})
	return err == nil && existed
}

func (c *Cache) RemoveAccessTokensForUser(ctx context.Context, uid string) {
	_ = c.do(ctx, string(repository.ScopeAccessTokens), func(ctx context.Context) error {
		return c.conn.IndexedRemoveAll(ctx, accessIndexPrefix+uid, accessKeyPrefix)
	})
}

func (c *Cache) RemoveAccessTokensForUserAndClient(ctx context.Context, uid, clientID string) {
	_ = c.do(ctx, string(repository.ScopeAccessTokens), func(ctx context.Context) error {
		values, err := c.conn.IndexedList(ctx, accessIndexPrefix+uid, accessKeyPrefix)
		if err != nil {
			return err
		}
		var ids []string
		for _, v := range values {
			var tok repository.CachedAccessToken
			if err := json.Unmarshal([]byte(v), &tok); err != nil {
				continue
			}
			if tok.ClientID == clientID {
				ids = append(ids, tok.TokenID)
			}
		}
		return c.conn.IndexedRemove(ctx, accessIndexPrefix+uid, accessKeyPrefix, ids...)
	})
}

// ─── Reconciliación ───

// PruneStale elimina del scope las entradas cuyo id no está en knownValid.
// Best-effort: en degradación retorna 0 y se reintenta en el próximo read.
func (c *Cache) PruneStale(ctx context.Context, scope repository.CacheScope, uid string, knownValid []string) int {
	valid := make(map[string]struct{}, len(knownValid))
	for _, id := range knownValid {
		valid[id] = struct{}{}
	}

	pruned := 0
	err := c.do(ctx, string(scope), func(ctx context.Context) error {
		switch scope {
		case repository.ScopeSessionTokens, repository.ScopeRefreshTokens:
			key := sessionHashPrefix + uid
			if scope == repository.ScopeRefreshTokens {
				key = refreshHashPrefix + uid
			}
			raw, err := c.conn.HGetAll(ctx, key)
			if err != nil {
				return err
			}
			var stale []string
			for id := range raw {
				if _, ok := valid[id]; !ok {
					stale = append(stale, id)
				}
			}
			if len(stale) == 0 {
				return nil
			}
			n, err := c.conn.HDel(ctx, key, stale...)
			pruned = n
			return err

		case repository.ScopeAccessTokens:
			values, err := c.conn.IndexedList(ctx, accessIndexPrefix+uid, accessKeyPrefix)
			if err != nil {
				return err
			}
			var stale []string
			for _, v := range values {
				var tok repository.CachedAccessToken
				if err := json.Unmarshal([]byte(v), &tok); err != nil {
					continue
				}
				if _, ok := valid[tok.TokenID]; !ok {
					stale = append(stale, tok.TokenID)
				}
			}
			if len(stale) == 0 {
				return nil
			}
			pruned = len(stale)
			return c.conn.IndexedRemove(ctx, accessIndexPrefix+uid, accessKeyPrefix, stale...)
		}
		return nil
	})
	if err != nil {
		return 0
	}
	if pruned > 0 {
		metrics.CachePrunedEntries.WithLabelValues(string(scope)).Add(float64(pruned))
		c.log.Debugw("pruned stale cache entries", "uid", uid, "scope", scope, "count", pruned)
	}
	return pruned
}
