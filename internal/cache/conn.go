package cache

import (
	"context"
	"time"
)

// Conn define las primitivas que debe proveer un backend del token cache.
//
// Hay dos layouts:
//   - hash por usuario (session y refresh tokens): field = token id,
//     value = JSON de la metadata.
//   - kv indexado por usuario (access tokens): un value por token más un
//     índice ordenado por fecha de creación, para poder listar por
//     usuario y evictar los más viejos al superar el record limit.
//
// El contrato de IndexedSet es atomicidad de "insertar + evictar sobre el
// límite": en Redis se implementa con un script Lua, en memoria con un
// mutex.
type Conn interface {
	Ping(ctx context.Context) error
	Close() error

	// ─── hash por usuario ───

	// HGetAll retorna todos los fields del hash. Mapa vacío si no existe.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HSet setea un field y renueva el TTL del hash completo a maxTTL.
	// Si recordLimit > 0 y el hash lo excede, evicta atómicamente el
	// field con el timestamp más viejo (lastUsedAt/lastAccessTime del
	// value JSON).
	HSet(ctx context.Context, key, field, value string, recordLimit int, maxTTL time.Duration) error

	// HDel elimina fields. Idempotente; retorna cuántos existían.
	HDel(ctx context.Context, key string, fields ...string) (int, error)

	// Del elimina una clave completa. Idempotente.
	Del(ctx context.Context, key string) error

	// ─── kv indexado ───

	// Get retorna el value de una clave. ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// IndexedSet guarda value bajo keyPrefix+id, agrega id al índice con
	// el score dado (epoch ms de creación) y, atómicamente, evicta las
	// entradas más viejas que excedan recordLimit. ttl acota la entrada,
	// maxTTL acota el índice.
	IndexedSet(ctx context.Context, indexKey, keyPrefix, id, value string, score int64, recordLimit int, ttl, maxTTL time.Duration) error

	// IndexedList retorna los values de todas las entradas del índice.
	// Los ids del índice sin value (expirados o removidos) se limpian
	// del índice en el mismo paso.
	IndexedList(ctx context.Context, indexKey, keyPrefix string) ([]string, error)

	// IndexedRemove elimina entradas puntuales del índice y sus values.
	IndexedRemove(ctx context.Context, indexKey, keyPrefix string, ids ...string) error

	// IndexedRemoveAll elimina el índice y todos sus values.
	IndexedRemoveAll(ctx context.Context, indexKey, keyPrefix string) error
}
