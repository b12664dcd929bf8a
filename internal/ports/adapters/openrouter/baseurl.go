package openrouter

import (
	"fmt"
	"net/url"
	"strings"
)

const defaultBaseURL = "https://openrouter.ai"

var defaultAllowedHosts = []string{"openrouter.ai", "api.openrouter.ai"}

// BaseURLError explains why a configured base URL was refused. The API key
// is sent to whatever host this URL names.
type BaseURLError struct {
	URL    string
	Reason string
	Err    error
}

func (e *BaseURLError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid OPENROUTER_BASE_URL %q: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("invalid OPENROUTER_BASE_URL %q: %s", e.URL, e.Reason)
}

func (e *BaseURLError) Unwrap() error { return e.Err }

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return defaultBaseURL
	}
	return strings.TrimRight(baseURL, "/")
}

// ValidateBaseURL accepts only absolute https URLs without credentials,
// query or fragment whose host is allow-listed. An empty allow-list means
// the public OpenRouter hosts.
func ValidateBaseURL(baseURL string, allowedHosts []string) error {
	raw := normalizeBaseURL(baseURL)
	u, err := url.Parse(raw)
	if err != nil {
		return &BaseURLError{URL: raw, Err: err}
	}

	reject := func(reason string) error { return &BaseURLError{URL: raw, Reason: reason} }
	host := strings.ToLower(u.Hostname())
	switch {
	case !u.IsAbs() || u.Host == "":
		return reject("absolute URL with host is required")
	case u.User != nil:
		return reject("userinfo is not allowed")
	case u.RawQuery != "" || u.Fragment != "":
		return reject("query and fragment are not allowed")
	case host == "":
		return reject("host is required")
	case !strings.EqualFold(u.Scheme, "https"):
		return reject("https is required")
	}

	if _, ok := hostSet(allowedHosts)[host]; !ok {
		return reject(fmt.Sprintf("host %q is not in OPENROUTER_ALLOWED_HOSTS", host))
	}
	return nil
}

// hostSet reduces allow-list entries to bare lower-case host names. Entries
// may carry a scheme, port or trailing slash.
func hostSet(entries []string) map[string]struct{} {
	out := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if h := bareHost(e); h != "" {
			out[h] = struct{}{}
		}
	}
	if len(out) == 0 {
		for _, h := range defaultAllowedHosts {
			out[h] = struct{}{}
		}
	}
	return out
}

func bareHost(entry string) string {
	v := strings.ToLower(strings.TrimSpace(entry))
	if i := strings.Index(v, "://"); i >= 0 {
		v = v[i+3:]
	}
	v, _, _ = strings.Cut(v, "/")
	v, _, _ = strings.Cut(v, ":")
	return v
}
