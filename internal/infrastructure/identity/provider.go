package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StaticProvider serves one fixed token, for deployments where the analyzer
// credential is issued out of band.
type StaticProvider struct {
	token string
}

func NewStaticProvider(token string) *StaticProvider {
	return &StaticProvider{token: token}
}

func (p *StaticProvider) CurrentToken(context.Context) (string, error) {
	return p.token, nil
}

// FetchFunc obtains a fresh bearer token from the identity service.
type FetchFunc func(ctx context.Context) (string, error)

// RefreshingProvider caches a JWT and refreshes it shortly before the exp
// claim runs out. Readers always get a token with remaining lifetime;
// subscribers hear about every refresh.
type RefreshingProvider struct {
	fetch  FetchFunc
	leeway time.Duration

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	subMu   sync.Mutex
	subs    map[int]func(token string)
	nextSub int
}

func NewRefreshingProvider(fetch FetchFunc, leeway time.Duration) *RefreshingProvider {
	if leeway <= 0 {
		leeway = 30 * time.Second
	}
	return &RefreshingProvider{
		fetch:  fetch,
		leeway: leeway,
		subs:   make(map[int]func(token string)),
	}
}

func (p *RefreshingProvider) CurrentToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && (p.expiresAt.IsZero() || time.Until(p.expiresAt) > p.leeway) {
		return p.token, nil
	}

	token, err := p.fetch(ctx)
	if err != nil {
		// A still-valid cached token beats failing the caller.
		if p.token != "" && time.Now().Before(p.expiresAt) {
			slog.Warn("token_refresh_failed_serving_cached", "error", err)
			return p.token, nil
		}
		return "", fmt.Errorf("refresh token: %w", err)
	}

	p.token = token
	p.expiresAt = tokenExpiry(token)
	slog.Info("token_refreshed", "expires_at", p.expiresAt)

	p.notify(token)
	return token, nil
}

// Subscribe registers a refresh listener and returns its unsubscribe.
func (p *RefreshingProvider) Subscribe(fn func(token string)) (unsubscribe func()) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	return func() {
		p.subMu.Lock()
		defer p.subMu.Unlock()
		delete(p.subs, id)
	}
}

func (p *RefreshingProvider) notify(token string) {
	p.subMu.Lock()
	fns := make([]func(string), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.subMu.Unlock()

	for _, fn := range fns {
		fn(token)
	}
}

// tokenExpiry reads the exp claim without verifying the signature; the
// provider is a client of the token, not its audience.
func tokenExpiry(token string) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
