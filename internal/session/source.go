package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/harborlane/clienteling-core/pkg/config"
	pkgerrors "github.com/harborlane/clienteling-core/pkg/errors"
	"github.com/harborlane/clienteling-core/pkg/logger"
)

// refreshSkew is subtracted from a token's lifetime so a call never goes out
// with a token about to expire mid-flight.
const refreshSkew = 30 * time.Second

// Cache is the shared token store. It is optional; without one the source
// keeps tokens in process memory only.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	TokenKey(host string) string
}

type cachedToken struct {
	value   string
	expires time.Time
}

// Params collects the collaborators of a token source.
type Params struct {
	Config     config.CommerceConfig
	Logger     *logger.Logger
	Cache      Cache
	HTTPClient *http.Client

	// AuthURL overrides the config-derived auth endpoint. Tests point it at
	// a local fake server.
	AuthURL string

	// IsMiss classifies a cache read error as a plain miss. Defaults to
	// treating every cache error as a miss.
	IsMiss func(err error) bool
}

// Source manages the bearer-token lifecycle for basket calls: fetch a guest
// session token per storefront host, learn its expiry from the token's own
// exp claim, and serve it from memory (and the shared cache, when present)
// until it nears expiry.
type Source struct {
	cfg     config.CommerceConfig
	logg    *logger.Logger
	cache   Cache
	http    *http.Client
	authURL string
	isMiss  func(err error) bool

	mu     sync.Mutex
	tokens map[string]cachedToken
}

func NewSource(params Params) (*Source, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: params.Config.Timeout}
	}
	isMiss := params.IsMiss
	if isMiss == nil {
		isMiss = func(error) bool { return true }
	}
	return &Source{
		cfg:     params.Config,
		logg:    params.Logger,
		cache:   params.Cache,
		http:    httpClient,
		authURL: strings.TrimSuffix(params.AuthURL, "/"),
		isMiss:  isMiss,
		tokens:  map[string]cachedToken{},
	}, nil
}

// Token returns a bearer token for the storefront host, fetching a fresh one
// when no live token is cached.
func (s *Source) Token(ctx context.Context, host string) (string, error) {
	if token, ok := s.fromMemory(host); ok {
		return token, nil
	}
	if token, ok := s.fromCache(ctx, host); ok {
		return token, nil
	}
	return s.fetch(ctx, host)
}

func (s *Source) fromMemory(host string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cached, ok := s.tokens[host]
	if !ok || time.Now().After(cached.expires.Add(-refreshSkew)) {
		return "", false
	}
	return cached.value, true
}

func (s *Source) fromCache(ctx context.Context, host string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	value, err := s.cache.Get(ctx, s.cache.TokenKey(host))
	if err != nil {
		if !s.isMiss(err) {
			s.logg.Warn(ctx, "token cache read failed; falling back to auth call")
		}
		return "", false
	}
	expires, err := tokenExpiry(value)
	if err != nil || time.Now().After(expires.Add(-refreshSkew)) {
		return "", false
	}
	s.remember(host, value, expires)
	return value, true
}

// fetch opens a guest session against the storefront and reads the bearer
// token off the response. The token's own exp claim drives the cache TTL.
func (s *Source) fetch(ctx context.Context, host string) (string, error) {
	endpoint := s.authURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s/s/%s/dw/shop/%s", host, s.cfg.SiteID, s.cfg.APIVersion)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/customers/auth",
		strings.NewReader(`{"type":"guest"}`))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building auth request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-dw-client-id", s.cfg.ClientID)

	resp, err := s.http.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "auth endpoint unreachable")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized,
			fmt.Sprintf("auth endpoint returned status %d", resp.StatusCode))
	}

	token := strings.TrimPrefix(resp.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "auth response carried no bearer token")
	}

	expires, err := tokenExpiry(token)
	if err != nil {
		s.logg.Warn(ctx, "bearer token carries no usable expiry; caching briefly")
		expires = time.Now().Add(refreshSkew * 2)
	}

	s.remember(host, token, expires)
	if s.cache != nil {
		ttl := time.Until(expires)
		if ttl > 0 {
			if err := s.cache.Set(ctx, s.cache.TokenKey(host), token, ttl); err != nil {
				s.logg.Warn(ctx, "token cache write failed")
			}
		}
	}
	return token, nil
}

func (s *Source) remember(host, token string, expires time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[host] = cachedToken{value: token, expires: expires}
}

// Invalidate drops any cached token for the host, forcing the next call to
// authenticate again. Used after the server rejects a token early.
func (s *Source) Invalidate(host string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, host)
}

// tokenExpiry reads the exp claim without verifying the signature; the
// storefront verifies tokens, the client only needs the lifetime.
func tokenExpiry(token string) (time.Time, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, err
	}
	expires, err := parsed.Claims.GetExpirationTime()
	if err != nil || expires == nil {
		return time.Time{}, fmt.Errorf("token has no exp claim")
	}
	return expires.Time, nil
}
