package api

import (
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"

	"aquaflow/internal/config"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	PermReadData          = "read:data"
	PermWriteData         = "write:data"
	clientKeyUnknown      = "unknown"
)

var (
	errMissingHeaders   = errors.New("missing api key headers")
	errInvalidKey       = errors.New("invalid api key")
	errInvalidExtra     = errors.New("invalid extra header")
	errPermissionDenied = errors.New("permission denied")
	errRateLimited      = errors.New("rate limit exceeded")
)

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg         config.APIAuthConfig
	clients     map[string]config.APIClientKey
	limiter     *rateLimiter
	keyHeader   string
	extraHeader string
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}

	keyHeader := strings.TrimSpace(strings.ToLower(cfg.Auth.HeaderAPIKey))
	if keyHeader == "" {
		keyHeader = apiKeyHeaderDefault
	}
	extraHeader := strings.TrimSpace(strings.ToLower(cfg.Auth.HeaderExtra))
	if extraHeader == "" {
		extraHeader = apiExtraHeaderDefault
	}

	return &HTTPAuth{
		cfg:         cfg.Auth,
		clients:     m,
		limiter:     newRateLimiter(cfg.RateLimit),
		keyHeader:   keyHeader,
		extraHeader: extraHeader,
	}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.Enabled {
			if err := a.checkAuth(r); err != nil {
				statusCode := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error())
				return
			}
		}

		if err := a.checkRateLimit(r); err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) checkAuth(r *http.Request) error {
	apiKey := strings.TrimSpace(r.Header.Get(a.keyHeader))
	extra := strings.TrimSpace(r.Header.Get(a.extraHeader))
	if apiKey == "" || extra == "" {
		return errMissingHeaders
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return errInvalidKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return errInvalidExtra
	}

	return checkPermissions(client, requiredPermission(r))
}

func checkPermissions(client config.APIClientKey, required string) error {
	if required == "" {
		return nil
	}
	// An empty permission list is allow-all.
	if len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func requiredPermission(r *http.Request) string {
	if !strings.HasPrefix(r.URL.Path, "/api/v1/data") {
		return ""
	}
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return PermReadData
	}
	return PermWriteData
}

func (a *HTTPAuth) checkRateLimit(r *http.Request) error {
	if !a.limiter.enabled() {
		return nil
	}
	if !a.limiter.getLimiter(a.clientKey(r)).Allow() {
		return errRateLimited
	}
	return nil
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.keyHeader)); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return clientKeyUnknown
}
