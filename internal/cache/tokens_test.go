package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dropDatabas3/attachedclients/internal/domain/repository"
)

func sessionMetaForTest(id string, lastAccess int64) repository.SessionTokenMeta {
	return repository.SessionTokenMeta{ID: id, LastAccessTime: lastAccess}
}

func readyCache(t *testing.T, cfg Config) *Cache {
	t.Helper()
	c := New(NewMemory(), cfg)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return c
}

func accessToken(id, uid, clientID string, createdAt, ttl int64) repository.CachedAccessToken {
	return repository.CachedAccessToken{
		TokenID:   id,
		UID:       uid,
		ClientID:  clientID,
		Scope:     []string{"profile"},
		CreatedAt: createdAt,
		TTL:       ttl,
	}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	c := readyCache(t, testConfig())
	ctx := context.Background()

	c.TouchSessionToken(ctx, "u1", repository.SessionTokenMeta{
		ID:             "tok1",
		LastAccessTime: 12345,
		UABrowser:      "Firefox",
		Location:       &repository.Location{Country: "Germany", CountryCode: "DE"},
	})

	got := c.GetSessionTokens(ctx, "u1")
	meta, ok := got["tok1"]
	if !ok {
		t.Fatalf("token missing: %v", got)
	}
	if meta.LastAccessTime != 12345 || meta.UABrowser != "Firefox" {
		t.Fatalf("meta = %+v", meta)
	}
	if meta.Location == nil || meta.Location.CountryCode != "DE" {
		t.Fatalf("location lost: %+v", meta.Location)
	}

	c.RemoveSessionToken(ctx, "u1", "tok1")
	if got := c.GetSessionTokens(ctx, "u1"); len(got) != 0 {
		t.Fatalf("token not removed: %v", got)
	}
	// removing again is a no-op
	c.RemoveSessionToken(ctx, "u1", "tok1")
}

func TestRefreshTokenTouch(t *testing.T) {
	c := readyCache(t, testConfig())
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	c.TouchRefreshToken(ctx, "u1", "rt1")

	got := c.GetRefreshTokens(ctx, "u1")
	meta, ok := got["rt1"]
	if !ok {
		t.Fatalf("refresh meta missing: %v", got)
	}
	if meta.LastUsedAt.Before(before) {
		t.Fatalf("lastUsedAt not refreshed: %v", meta.LastUsedAt)
	}

	c.RemoveRefreshToken(ctx, "u1", "rt1")
	if got := c.GetRefreshTokens(ctx, "u1"); len(got) != 0 {
		t.Fatalf("refresh meta not removed: %v", got)
	}
}

func TestMalformedValueIsAMiss(t *testing.T) {
	mem := NewMemory()
	c := New(mem, testConfig())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	ctx := context.Background()

	// plant garbage next to a good entry, straight through the backend
	if err := mem.HSet(ctx, sessionHashPrefix+"u1", "bad", "{not json", 10, time.Hour); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	c.TouchSessionToken(ctx, "u1", sessionMetaForTest("good", 99))

	got := c.GetSessionTokens(ctx, "u1")
	if _, ok := got["bad"]; ok {
		t.Fatal("malformed value surfaced")
	}
	if _, ok := got["good"]; !ok {
		t.Fatalf("good value lost: %v", got)
	}
	if c.State() != StateReady {
		t.Fatalf("malformed value must not open the circuit: %v", c.State())
	}
}

func TestAccessTokenRecordLimitEvictsOldest(t *testing.T) {
	cfg := testConfig()
	cfg.RecordLimit = 3
	c := readyCache(t, cfg)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		c.SetAccessToken(ctx, accessToken(
			fmt.Sprintf("at%d", i), "u1", "c1", int64(i*1000), 600,
		))
	}

	got := c.GetAccessTokens(ctx, "u1")
	if len(got) != 3 {
		t.Fatalf("got %d tokens, want exactly recordLimit (3)", len(got))
	}
	for _, tok := range got {
		if tok.TokenID == "at1" {
			t.Fatal("oldest token survived the eviction")
		}
	}
}

func TestAccessTokenMinTTLSkipped(t *testing.T) {
	cfg := testConfig()
	cfg.MinTTL = 10 * time.Second
	c := readyCache(t, cfg)
	ctx := context.Background()

	// near-expired: storing it is wasted work
	c.SetAccessToken(ctx, accessToken("at1", "u1", "c1", 1000, 5))

	if got := c.GetAccessTokens(ctx, "u1"); len(got) != 0 {
		t.Fatalf("near-expired token should not be cached: %v", got)
	}
	if tok := c.GetAccessToken(ctx, "at1"); tok != nil {
		t.Fatalf("near-expired token retrievable: %+v", tok)
	}
}

func TestAccessTokenRemove(t *testing.T) {
	c := readyCache(t, testConfig())
	ctx := context.Background()

	c.SetAccessToken(ctx, accessToken("at1", "u1", "c1", 1000, 600))

	if !c.RemoveAccessToken(ctx, "at1") {
		t.Fatal("expected removal of existing token to report true")
	}
	if c.RemoveAccessToken(ctx, "at1") {
		t.Fatal("second removal should report false")
	}
	// the per-user index self-heals on the next listing
	if got := c.GetAccessTokens(ctx, "u1"); len(got) != 0 {
		t.Fatalf("removed token still listed: %v", got)
	}
}

func TestRemoveAccessTokensForUserAndClient(t *testing.T) {
	c := readyCache(t, testConfig())
	ctx := context.Background()

	c.SetAccessToken(ctx, accessToken("at1", "u1", "keep", 1000, 600))
	c.SetAccessToken(ctx, accessToken("at2", "u1", "drop", 2000, 600))
	c.SetAccessToken(ctx, accessToken("at3", "u1", "drop", 3000, 600))

	c.RemoveAccessTokensForUserAndClient(ctx, "u1", "drop")

	got := c.GetAccessTokens(ctx, "u1")
	if len(got) != 1 || got[0].ClientID != "keep" {
		t.Fatalf("got %v, want only the keep client", got)
	}
}

func TestRemoveAccessTokensForUser(t *testing.T) {
	c := readyCache(t, testConfig())
	ctx := context.Background()

	c.SetAccessToken(ctx, accessToken("at1", "u1", "c1", 1000, 600))
	c.SetAccessToken(ctx, accessToken("at2", "u1", "c2", 2000, 600))

	c.RemoveAccessTokensForUser(ctx, "u1")
	if got := c.GetAccessTokens(ctx, "u1"); len(got) != 0 {
		t.Fatalf("tokens survived: %v", got)
	}
}

func TestPruneStale(t *testing.T) {
	c := readyCache(t, testConfig())
	ctx := context.Background()

	c.TouchSessionToken(ctx, "u1", sessionMetaForTest("live", 1))
	c.TouchSessionToken(ctx, "u1", sessionMetaForTest("stale1", 2))
	c.TouchSessionToken(ctx, "u1", sessionMetaForTest("stale2", 3))

	n := c.PruneStale(ctx, repository.ScopeSessionTokens, "u1", []string{"live"})
	if n != 2 {
		t.Fatalf("pruned %d, want 2", n)
	}
	got := c.GetSessionTokens(ctx, "u1")
	if len(got) != 1 {
		t.Fatalf("got %v, want only the live token", got)
	}
	if _, ok := got["live"]; !ok {
		t.Fatal("live token pruned by mistake")
	}

	// nothing left to prune
	if n := c.PruneStale(ctx, repository.ScopeSessionTokens, "u1", []string{"live"}); n != 0 {
		t.Fatalf("second prune removed %d", n)
	}
}

func TestPruneStaleAccessTokens(t *testing.T) {
	c := readyCache(t, testConfig())
	ctx := context.Background()

	c.SetAccessToken(ctx, accessToken("live", "u1", "c1", 1000, 600))
	c.SetAccessToken(ctx, accessToken("stale", "u1", "c1", 2000, 600))

	n := c.PruneStale(ctx, repository.ScopeAccessTokens, "u1", []string{"live"})
	if n != 1 {
		t.Fatalf("pruned %d, want 1", n)
	}
	got := c.GetAccessTokens(ctx, "u1")
	if len(got) != 1 || got[0].TokenID != "live" {
		t.Fatalf("got %v", got)
	}
}

func TestGetAccessTokensFallbackIsEmptySlice(t *testing.T) {
	ctx := context.Background()

	// Still Connecting: every read short-circuits to its fallback.
	c := New(NewMemory(), testConfig())
	if got := c.GetAccessTokens(ctx, "u1"); got == nil || len(got) != 0 {
		t.Fatalf("fallback = %#v, want empty non-nil slice", got)
	}

	// Ready with nothing stored behaves the same.
	c = readyCache(t, testConfig())
	if got := c.GetAccessTokens(ctx, "u1"); got == nil || len(got) != 0 {
		t.Fatalf("empty read = %#v, want empty non-nil slice", got)
	}
}
