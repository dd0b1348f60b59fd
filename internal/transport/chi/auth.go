package chi

import (
	"net/http"
	"strings"
)

// publicPaths skip authentication so orchestrators and scrapers need no key.
var publicPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware rejects requests whose Authorization header does not
// carry one of apiKeys as a Bearer token. Blank keys are ignored; with no
// keys left the middleware is a pass-through.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := publicPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			token, msg := bearerToken(r)
			if msg == "" {
				if _, ok := keys[token]; !ok {
					msg = "invalid api key"
				}
			}
			if msg != "" {
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token, or returns a client-facing reason it could not.
func bearerToken(r *http.Request) (token, problem string) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", "missing authorization header"
	}
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return "", "authorization header must use Bearer scheme"
	}
	return token, ""
}
