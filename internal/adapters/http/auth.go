package httpadapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/okarpov/tenderdesk/internal/core/domain"
)

type actorContextKey struct{}

func actorFromContext(ctx context.Context) domain.Actor {
	actor, _ := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor
}

// authMiddleware authenticates the bearer token and stores the resulting
// actor in the request context. Tokens are HMAC-signed by the identity
// service; the subject claim is the user id.
func authMiddleware(secret string, next http.Handler) http.Handler {
	keyFunc := func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return []byte(secret), nil
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := authenticate(r, keyFunc)
		if err != nil {
			writeError(w, domain.WrapError(domain.ErrUnauthorized, "authenticate request", err))
			return
		}

		ctx := context.WithValue(r.Context(), actorContextKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authenticate(r *http.Request, keyFunc jwt.Keyfunc) (domain.Actor, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return domain.Actor{}, fmt.Errorf("missing authorization header")
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return domain.Actor{}, fmt.Errorf("authorization header is not a bearer token")
	}

	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, keyFunc); err != nil {
		return domain.Actor{}, fmt.Errorf("parse token: %w", err)
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return domain.Actor{}, fmt.Errorf("token has no subject")
	}

	actor := domain.Actor{
		ID:   subject,
		Role: domain.RoleUser,
	}
	if email, ok := claims["email"].(string); ok {
		actor.Email = email
	}
	if role, ok := claims["role"].(string); ok && role != "" {
		actor.Role = domain.Role(role)
	}
	return actor, nil
}
