package connected

import (
	"testing"

	"github.com/dropDatabas3/attachedclients/internal/domain/repository"
)

func sp(s string) *string { return &s }

func TestReconcileMergesDeviceOAuthAndSession(t *testing.T) {
	devices := []AttachedDevice{{
		ID:             "dev1",
		SessionTokenID: sp("sess1"),
		RefreshTokenID: sp("rt1"),
		Name:           sp("My Phone"),
		CreatedAt:      1000,
	}}
	oauth := []AttachedOAuthClient{{
		RefreshTokenID: "rt1",
		ClientID:       "client1",
		ClientName:     "Sync App",
		Scope:          []string{"profile"},
		CreatedTime:    500,
		LastAccessTime: 3000,
	}}
	sessions := []AttachedSession{{
		ID:             "sess1",
		CreatedAt:      2000,
		LastAccessTime: 5000,
		UABrowser:      "Firefox",
		UABrowserVersion: "102.0.1",
		UAOS:           "Android",
		Location:       &repository.Location{Country: "Spain", CountryCode: "ES"},
	}}

	got := Reconcile(devices, oauth, sessions, "sess1")
	if len(got) != 1 {
		t.Fatalf("expected a single merged client, got %d", len(got))
	}
	c := got[0]
	if c.DeviceID == nil || *c.DeviceID != "dev1" {
		t.Fatalf("deviceId not preserved: %+v", c)
	}
	if c.RefreshTokenID == nil || *c.RefreshTokenID != "rt1" {
		t.Fatalf("refreshTokenId not attached after oauth merge: %+v", c)
	}
	if c.ClientID == nil || *c.ClientID != "client1" {
		t.Fatalf("clientId not attached: %+v", c)
	}
	// min of all contributing createdTime values
	if c.CreatedTime != 500 {
		t.Fatalf("createdTime = %d, want 500", c.CreatedTime)
	}
	// max of all contributing lastAccessTime values
	if c.LastAccessTime != 5000 {
		t.Fatalf("lastAccessTime = %d, want 5000", c.LastAccessTime)
	}
	// holding a session token grants full access: scope must be nil
	if c.Scope != nil {
		t.Fatalf("scope = %v, want nil for session-holding client", c.Scope)
	}
	if !c.IsCurrentSession {
		t.Fatal("expected isCurrentSession for the caller's own session")
	}
	if c.Name != "My Phone" {
		t.Fatalf("device name should win, got %q", c.Name)
	}
	if c.OS != "Android" || c.UserAgent != "Firefox 102" {
		t.Fatalf("session should own os/userAgent: os=%q ua=%q", c.OS, c.UserAgent)
	}
	if c.Location == nil || c.Location.Country != "Spain" {
		t.Fatalf("session location not copied: %+v", c.Location)
	}
}

func TestReconcileUniqueness(t *testing.T) {
	devices := []AttachedDevice{
		{ID: "dev1", SessionTokenID: sp("sess1"), CreatedAt: 100},
		{ID: "dev2", RefreshTokenID: sp("rt1"), CreatedAt: 200},
	}
	oauth := []AttachedOAuthClient{
		{RefreshTokenID: "rt1", ClientID: "c1", CreatedTime: 150, LastAccessTime: 300},
		{RefreshTokenID: "rt2", ClientID: "c2", CreatedTime: 400, LastAccessTime: 500},
	}
	sessions := []AttachedSession{
		{ID: "sess1", CreatedAt: 100, LastAccessTime: 900},
		{ID: "sess2", CreatedAt: 700, LastAccessTime: 800},
	}

	got := Reconcile(devices, oauth, sessions, "")

	seenSession := map[string]bool{}
	seenRefresh := map[string]bool{}
	for _, c := range got {
		if c.SessionTokenID != nil {
			if seenSession[*c.SessionTokenID] {
				t.Fatalf("duplicate sessionTokenId %q", *c.SessionTokenID)
			}
			seenSession[*c.SessionTokenID] = true
		}
		if c.RefreshTokenID != nil {
			if seenRefresh[*c.RefreshTokenID] {
				t.Fatalf("duplicate refreshTokenId %q", *c.RefreshTokenID)
			}
			seenRefresh[*c.RefreshTokenID] = true
		}
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 distinct clients, got %d", len(got))
	}
}

func TestReconcileOAuthOnlyClient(t *testing.T) {
	oauth := []AttachedOAuthClient{{
		RefreshTokenID: "rt1",
		ClientID:       "c1",
		ClientName:     "CLI Tool",
		Scope:          []string{"profile", "openid"},
		CreatedTime:    100,
		LastAccessTime: 200,
	}}
	got := Reconcile(nil, oauth, nil, "")
	if len(got) != 1 {
		t.Fatalf("got %d clients", len(got))
	}
	c := got[0]
	if c.Name != "CLI Tool" {
		t.Fatalf("oauth client name should be the default, got %q", c.Name)
	}
	if len(c.Scope) != 2 {
		t.Fatalf("scope lost: %v", c.Scope)
	}
	if c.DeviceID != nil || c.SessionTokenID != nil {
		t.Fatalf("pure oauth client must not carry device/session ids: %+v", c)
	}
	if c.DeviceType != "" {
		t.Fatalf("deviceType = %q, want empty without device record", c.DeviceType)
	}
}

func TestReconcileDeviceTypeDefaults(t *testing.T) {
	// oauth client attached to a typeless device record defaults to mobile
	devices := []AttachedDevice{{ID: "dev1", RefreshTokenID: sp("rt1"), CreatedAt: 10}}
	oauth := []AttachedOAuthClient{{RefreshTokenID: "rt1", ClientID: "c1", CreatedTime: 10, LastAccessTime: 20}}
	got := Reconcile(devices, oauth, nil, "")
	if got[0].DeviceType != "mobile" {
		t.Fatalf("deviceType = %q, want mobile", got[0].DeviceType)
	}

	// a typeless device with no oauth merge defaults to desktop
	got = Reconcile([]AttachedDevice{{ID: "dev2", CreatedAt: 10}}, nil, nil, "")
	if got[0].DeviceType != "desktop" {
		t.Fatalf("deviceType = %q, want desktop", got[0].DeviceType)
	}

	// an explicit type is never overridden
	devices = []AttachedDevice{{ID: "dev3", RefreshTokenID: sp("rt3"), Type: sp("tablet"), CreatedAt: 10}}
	oauth = []AttachedOAuthClient{{RefreshTokenID: "rt3", ClientID: "c3", CreatedTime: 10, LastAccessTime: 20}}
	got = Reconcile(devices, oauth, nil, "")
	if got[0].DeviceType != "tablet" {
		t.Fatalf("deviceType = %q, want tablet", got[0].DeviceType)
	}
}

func TestReconcileNormalizesMacOSName(t *testing.T) {
	sessions := []AttachedSession{{
		ID:             "sess1",
		CreatedAt:      1,
		LastAccessTime: 2,
		UABrowser:      "Firefox",
		UABrowserVersion: "100.0",
		UAOS:           "Mac OS X",
		UAOSVersion:    "10.15",
	}}
	got := Reconcile(nil, nil, sessions, "")
	if got[0].Name != "Firefox 100, macOS 10.15" {
		t.Fatalf("name = %q", got[0].Name)
	}
}

func TestReconcileDanglingRefreshTokenPointer(t *testing.T) {
	// The device references a refresh token that no longer exists in the
	// oauth stream: the id must not surface on the merged client.
	devices := []AttachedDevice{{ID: "dev1", RefreshTokenID: sp("gone"), CreatedAt: 10}}
	got := Reconcile(devices, nil, nil, "")
	if got[0].RefreshTokenID != nil {
		t.Fatalf("dangling refreshTokenId surfaced: %q", *got[0].RefreshTokenID)
	}
}

func TestReconcileMonotonicity(t *testing.T) {
	devices := []AttachedDevice{{ID: "d", SessionTokenID: sp("s"), RefreshTokenID: sp("r"), CreatedAt: 300, LastAccessTime: 350}}
	oauth := []AttachedOAuthClient{{RefreshTokenID: "r", ClientID: "c", CreatedTime: 100, LastAccessTime: 400}}
	sessions := []AttachedSession{{ID: "s", CreatedAt: 200, LastAccessTime: 250}}

	c := Reconcile(devices, oauth, sessions, "")[0]
	for _, created := range []int64{300, 100, 200} {
		if c.CreatedTime > created {
			t.Fatalf("createdTime %d exceeds source %d", c.CreatedTime, created)
		}
	}
	for _, last := range []int64{350, 400, 250} {
		if c.LastAccessTime < last {
			t.Fatalf("lastAccessTime %d below source %d", c.LastAccessTime, last)
		}
	}
}
