package connected

import "testing"

func TestSynthesizeClientName(t *testing.T) {
	cases := []struct {
		name string
		in   AttachedSession
		want string
	}{
		{
			name: "browser with major version and os version",
			in:   AttachedSession{UABrowser: "Firefox", UABrowserVersion: "102.0.1", UAOS: "Windows", UAOSVersion: "10"},
			want: "Firefox 102, Windows 10",
		},
		{
			name: "version without dots is used whole",
			in:   AttachedSession{UABrowser: "Firefox", UABrowserVersion: "102", UAOS: "Linux"},
			want: "Firefox 102, Linux",
		},
		{
			name: "browser only",
			in:   AttachedSession{UABrowser: "Firefox"},
			want: "Firefox",
		},
		{
			name: "browser without version plus os",
			in:   AttachedSession{UABrowser: "Firefox", UAOS: "Windows"},
			want: "Firefox, Windows",
		},
		{
			name: "form factor takes precedence over os",
			in:   AttachedSession{UABrowser: "Firefox", UABrowserVersion: "102.0", UAOS: "iOS", UAOSVersion: "15", UAFormFactor: "iPad"},
			want: "Firefox 102, iPad",
		},
		{
			name: "os only",
			in:   AttachedSession{UAOS: "Windows", UAOSVersion: "10"},
			want: "Windows 10",
		},
		{
			name: "form factor only",
			in:   AttachedSession{UAFormFactor: "iPad"},
			want: "iPad",
		},
		{
			name: "empty session",
			in:   AttachedSession{},
			want: "",
		},
	}
	for _, tc := range cases {
		if got := SynthesizeClientName(tc.in); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}
