package api

import (
	"net"
	"net/http"
	"net/url"
	"slices"
)

// csrfMiddleware returns a middleware that validates Origin/Referer headers
// for state-changing requests (POST, PUT, DELETE). Requests carrying neither
// header come from non-browser clients such as the game mod and are allowed;
// browsers always send Origin on cross-origin writes.
func csrfMiddleware(allowedHosts []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodDelete {
				next.ServeHTTP(w, r)
				return
			}

			// Check Origin header first
			if origin := r.Header.Get("Origin"); origin != "" {
				originURL, err := url.Parse(origin)
				if err != nil || !isAllowedHost(originURL.Host, allowedHosts) {
					writeError(w, http.StatusForbidden, "forbidden: invalid origin", nil)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			// Fall back to Referer header
			if referer := r.Header.Get("Referer"); referer != "" {
				refererURL, err := url.Parse(referer)
				if err != nil || !isAllowedHost(refererURL.Host, allowedHosts) {
					writeError(w, http.StatusForbidden, "forbidden: invalid referer", nil)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// hostGuardMiddleware rejects requests whose Host header does not name a
// loopback address, which blocks DNS rebinding from web pages.
func hostGuardMiddleware(allowedHosts []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isAllowedHost(r.Host, allowedHosts) {
				writeError(w, http.StatusForbidden, "forbidden: invalid host", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isAllowedHost checks if the host is in the allowed list.
// Allows localhost variants by default.
func isAllowedHost(host string, allowedHosts []string) bool {
	hostname := stripPort(host)

	// Always allow localhost variants
	if hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1" {
		return true
	}

	return slices.ContainsFunc(allowedHosts, func(allowed string) bool {
		return stripPort(allowed) == hostname
	})
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// securityHeadersMiddleware adds security headers to all responses.
// The bridge serves JSON only, so the policy forbids all content.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Cross-Origin-Resource-Policy", "same-origin")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}
