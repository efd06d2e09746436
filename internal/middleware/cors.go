package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginPolicy is the browser origin allow-list shared by CORS and websocket upgrades.
type OriginPolicy struct {
	any     bool
	origins map[string]struct{}
}

// NewOriginPolicy parses the configured origins. "*" or an empty list admits
// any origin for CORS but never for credentialed websocket upgrades.
func NewOriginPolicy(allowed []string) OriginPolicy {
	p := OriginPolicy{any: len(allowed) == 0, origins: make(map[string]struct{}, len(allowed))}
	for _, o := range allowed {
		o = normalizeOrigin(o)
		switch o {
		case "":
		case "*":
			p.any = true
		default:
			p.origins[o] = struct{}{}
		}
	}
	return p
}

// Listed reports whether origin is named explicitly.
func (p OriginPolicy) Listed(origin string) bool {
	_, ok := p.origins[normalizeOrigin(origin)]
	return ok
}

// CheckOrigin is a websocket.Upgrader CheckOrigin. Requests without an Origin
// header and same-host requests pass; cross-site origins must be listed.
func (p OriginPolicy) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if p.Listed(origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func normalizeOrigin(o string) string {
	return strings.TrimRight(strings.TrimSpace(o), "/")
}

// CORS answers preflights and decorates responses for allowed origins.
// Listed origins are echoed back with credentials; the wildcard sends a
// literal "*" and no credentials.
func CORS(allowed []string) func(http.Handler) http.Handler {
	policy := NewOriginPolicy(allowed)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				h := w.Header()
				h.Add("Vary", "Origin")
				switch {
				case policy.Listed(origin):
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Credentials", "true")
					setCORSHeaders(h)
				case policy.any:
					h.Set("Access-Control-Allow-Origin", "*")
					setCORSHeaders(h)
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	h.Set("Access-Control-Expose-Headers", RequestIDHeader)
	h.Set("Access-Control-Max-Age", "86400")
}
