package cache

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory implementa Conn in-process sobre go-cache. Para desarrollo y
// tests; la atomicidad de las operaciones multi-clave se resuelve con un
// mutex en lugar de scripts.
type Memory struct {
	c  *gocache.Cache
	mu sync.Mutex
}

// NewMemory crea el backend en memoria.
func NewMemory() *Memory {
	return &Memory{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }

// ─── hash por usuario ───

func (m *Memory) hash(key string) map[string]string {
	if v, ok := m.c.Get(key); ok {
		if h, ok := v.(map[string]string); ok {
			return h
		}
	}
	return nil
}

func (m *Memory) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hash(key)
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) HSet(_ context.Context, key, field, value string, recordLimit int, maxTTL time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hash(key)
	if h == nil {
		h = make(map[string]string)
	}
	h[field] = value
	if recordLimit > 0 && len(h) > recordLimit {
		oldest, oldestTS := "", int64(0)
		for f, v := range h {
			ts := timestampOf(v)
			if oldest == "" || ts < oldestTS || (ts == oldestTS && f < oldest) {
				oldest, oldestTS = f, ts
			}
		}
		delete(h, oldest)
	}
	m.c.Set(key, h, maxTTL)
	return nil
}

// timestampOf extrae lastUsedAt/lastAccessTime (epoch ms) del value JSON.
// Valores que no parsean cuentan como los más viejos.
func timestampOf(value string) int64 {
	var v struct {
		LastUsedAt     int64 `json:"lastUsedAt"`
		LastAccessTime int64 `json:"lastAccessTime"`
	}
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		return 0
	}
	if v.LastUsedAt != 0 {
		return v.LastUsedAt
	}
	return v.LastAccessTime
}

func (m *Memory) HDel(_ context.Context, key string, fields ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hash(key)
	n := 0
	for _, f := range fields {
		if _, ok := h[f]; ok {
			delete(h, f)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.Delete(key)
	return nil
}

// ─── kv indexado ───

type memIndex map[string]int64 // id → score (epoch ms)

func (m *Memory) index(key string) memIndex {
	if v, ok := m.c.Get(key); ok {
		if idx, ok := v.(memIndex); ok {
			return idx
		}
	}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.c.Get(key); ok {
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return "", ErrNotFound
}

func (m *Memory) IndexedSet(_ context.Context, indexKey, keyPrefix, id, value string, score int64, recordLimit int, ttl, maxTTL time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if maxTTL > 0 && ttl > maxTTL {
		ttl = maxTTL
	}
	m.c.Set(keyPrefix+id, value, ttl)

	idx := m.index(indexKey)
	if idx == nil {
		idx = make(memIndex)
	}
	idx[id] = score

	if over := len(idx) - recordLimit; over > 0 {
		ids := make([]string, 0, len(idx))
		for k := range idx {
			ids = append(ids, k)
		}
		sort.Slice(ids, func(i, j int) bool {
			if idx[ids[i]] != idx[ids[j]] {
				return idx[ids[i]] < idx[ids[j]]
			}
			return ids[i] < ids[j]
		})
		for _, old := range ids[:over] {
			delete(idx, old)
			m.c.Delete(keyPrefix + old)
		}
	}

	m.c.Set(indexKey, idx, maxTTL)
	return nil
}

func (m *Memory) IndexedList(_ context.Context, indexKey, keyPrefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.index(indexKey)
	ids := make([]string, 0, len(idx))
	for id := range idx {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return idx[ids[i]] < idx[ids[j]] })

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		v, ok := m.c.Get(keyPrefix + id)
		if !ok {
			delete(idx, id)
			continue
		}
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) IndexedRemove(_ context.Context, indexKey, keyPrefix string, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.index(indexKey)
	for _, id := range ids {
		delete(idx, id)
		m.c.Delete(keyPrefix + id)
	}
	return nil
}

func (m *Memory) IndexedRemoveAll(_ context.Context, indexKey, keyPrefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.index(indexKey) {
		m.c.Delete(keyPrefix + id)
	}
	m.c.Delete(indexKey)
	return nil
}
