package openrouter

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		name         string
		baseURL      string
		allowedHosts []string
		wantReason   string
	}{
		{name: "empty falls back to default", baseURL: ""},
		{name: "default host", baseURL: "https://openrouter.ai/"},
		{name: "default api host", baseURL: "https://api.openrouter.ai"},
		{name: "configured host with port and scheme", baseURL: "https://proxy.internal:8443", allowedHosts: []string{"HTTPS://Proxy.Internal:8443/"}},
		{name: "relative", baseURL: "openrouter.ai", wantReason: "absolute URL"},
		{name: "plain http", baseURL: "http://openrouter.ai", wantReason: "https is required"},
		{name: "unknown host", baseURL: "https://evil.example", wantReason: `host "evil.example" is not in OPENROUTER_ALLOWED_HOSTS`},
		{name: "configured list replaces defaults", baseURL: "https://openrouter.ai", allowedHosts: []string{"proxy.internal"}, wantReason: "not in OPENROUTER_ALLOWED_HOSTS"},
		{name: "userinfo", baseURL: "https://u:p@openrouter.ai", wantReason: "userinfo"},
		{name: "query", baseURL: "https://openrouter.ai?x=1", wantReason: "query and fragment"},
		{name: "fragment", baseURL: "https://openrouter.ai#x", wantReason: "query and fragment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBaseURL(tt.baseURL, tt.allowedHosts)
			if tt.wantReason == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var bErr *BaseURLError
			if !errors.As(err, &bErr) {
				t.Fatalf("expected BaseURLError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantReason) {
				t.Fatalf("expected reason %q, got %q", tt.wantReason, err.Error())
			}
		})
	}
}

func TestHostSetFallsBackToDefaults(t *testing.T) {
	set := hostSet([]string{" ", "https://", "http:///"})
	if len(set) != len(defaultAllowedHosts) {
		t.Fatalf("expected default hosts, got %v", set)
	}
	if _, ok := set["openrouter.ai"]; !ok {
		t.Fatalf("expected openrouter.ai in %v", set)
	}
}
