package cache

import (
	"context"
	"errors"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// RedisConfig configura el backend Redis.
type RedisConfig struct {
	Addr     string
	DB       int
	Password string
	Prefix   string // prefijo para todas las keys
}

// Redis implementa Conn sobre go-redis. Las operaciones multi-clave que
// requieren atomicidad (insert + evict, listado con limpieza) usan
// scripts Lua server-side.
type Redis struct {
	c      *rdb.Client
	prefix string
}

// NewRedis crea el backend Redis. No hace ping; la conexión la maneja
// Cache.Connect con su presupuesto de reintentos.
func NewRedis(cfg RedisConfig) *Redis {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	return &Redis{
		c: rdb.NewClient(&rdb.Options{
			Addr:     addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix: cfg.Prefix,
	}
}

func (r *Redis) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *Redis) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }
func (r *Redis) Close() error                   { return r.c.Close() }

// ─── hash por usuario ───

func (r *Redis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := r.c.HGetAll(ctx, r.key(key)).Result()
	if err != nil {
		return nil, err
	}
	return m, nil
}

// hashSetScript setea el field y, si el hash excede el record limit,
// evicta el field con el timestamp más viejo según el value JSON.
var hashSetScript = rdb.NewScript(`
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
local limit = tonumber(ARGV[3])
if limit > 0 then
  local n = redis.call('HLEN', KEYS[1])
  if n > limit then
    local all = redis.call('HGETALL', KEYS[1])
    local oldest_field, oldest_ts
    for i = 1, #all, 2 do
      local ts = 0
      local ok, v = pcall(cjson.decode, all[i+1])
      if ok and type(v) == 'table' then
        ts = tonumber(v['lastUsedAt']) or tonumber(v['lastAccessTime']) or 0
      end
      if oldest_ts == nil or ts < oldest_ts then
        oldest_ts = ts
        oldest_field = all[i]
      end
    end
    if oldest_field then
      redis.call('HDEL', KEYS[1], oldest_field)
    end
  end
end
if tonumber(ARGV[4]) > 0 then
  redis.call('EXPIRE', KEYS[1], tonumber(ARGV[4]))
end
return 1
`)

func (r *Redis) HSet(ctx context.Context, key, field, value string, recordLimit int, maxTTL time.Duration) error {
	return hashSetScript.Run(ctx, r.c,
		[]string{r.key(key)},
		field, value, recordLimit, int(maxTTL.Seconds()),
	).Err()
}

func (r *Redis) HDel(ctx context.Context, key string, fields ...string) (int, error) {
	if len(fields) == 0 {
		return 0, nil
	}
	n, err := r.c.HDel(ctx, r.key(key), fields...).Result()
	return int(n), err
}

func (r *Redis) Del(ctx context.Context, key string) error {
	return r.c.Del(ctx, r.key(key)).Err()
}

// ─── kv indexado ───

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.c.Get(ctx, r.key(key)).Result()
	if errors.Is(err, rdb.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// indexedSetScript inserta el value, lo agrega al índice (score = epoch ms
// de creación) y evicta atómicamente los miembros más viejos que excedan
// el record limit, junto con sus values.
var indexedSetScript = rdb.NewScript(`
local id = ARGV[1]
local limit = tonumber(ARGV[4])
redis.call('SET', ARGV[7]..id, ARGV[2], 'EX', tonumber(ARGV[5]))
redis.call('ZADD', KEYS[1], tonumber(ARGV[3]), id)
local n = redis.call('ZCARD', KEYS[1])
if n > limit then
  local evict = redis.call('ZRANGE', KEYS[1], 0, n - limit - 1)
  for i, old in ipairs(evict) do
    redis.call('DEL', ARGV[7]..old)
  end
  redis.call('ZREMRANGEBYRANK', KEYS[1], 0, n - limit - 1)
end
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[6]))
return n
`)

func (r *Redis) IndexedSet(ctx context.Context, indexKey, keyPrefix, id, value string, score int64, recordLimit int, ttl, maxTTL time.Duration) error {
	return indexedSetScript.Run(ctx, r.c,
		[]string{r.key(indexKey)},
		id, value, score, recordLimit,
		int(ttl.Seconds()), int(maxTTL.Seconds()),
		r.key(keyPrefix),
	).Err()
}

// indexedListScript lista los values del índice. Los ids sin value
// (expirados o removidos por fuera del índice) se limpian en el paso.
var indexedListScript = rdb.NewScript(`
local ids = redis.call('ZRANGE', KEYS[1], 0, -1)
local out = {}
local missing = {}
for i, id in ipairs(ids) do
  local v = redis.call('GET', ARGV[1]..id)
  if v then
    out[#out+1] = v
  else
    missing[#missing+1] = id
  end
end
if #missing > 0 then
  redis.call('ZREM', KEYS[1], unpack(missing))
end
return out
`)

func (r *Redis) IndexedList(ctx context.Context, indexKey, keyPrefix string) ([]string, error) {
	res, err := indexedListScript.Run(ctx, r.c, []string{r.key(indexKey)}, r.key(keyPrefix)).Result()
	if err != nil {
		return nil, err
	}
	raw, ok := res.([]any)
	if !ok {
		return nil, ErrMalformedValue
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *Redis) IndexedRemove(ctx context.Context, indexKey, keyPrefix string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	pipe := r.c.TxPipeline()
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
		pipe.Del(ctx, r.key(keyPrefix+id))
	}
	pipe.ZRem(ctx, r.key(indexKey), members...)
	_, err := pipe.Exec(ctx)
	return err
}

// indexedRemoveAllScript elimina el índice completo y todos sus values.
var indexedRemoveAllScript = rdb.NewScript(`
local ids = redis.call('ZRANGE', KEYS[1], 0, -1)
for i, id in ipairs(ids) do
  redis.call('DEL', ARGV[1]..id)
end
redis.call('DEL', KEYS[1])
return #ids
`)

func (r *Redis) IndexedRemoveAll(ctx context.Context, indexKey, keyPrefix string) error {
	return indexedRemoveAllScript.Run(ctx, r.c, []string{r.key(indexKey)}, r.key(keyPrefix)).Err()
}
