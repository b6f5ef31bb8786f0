package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/virtualdesk/fleet-console/internal/auth"
	"github.com/virtualdesk/fleet-console/internal/domain"
	"github.com/virtualdesk/fleet-console/internal/storage"
)

type contextKey string

const PrincipalContextKey contextKey = "principal"

// Principal identifies the authenticated caller: either a service API key
// or a dashboard user verified via OIDC.
type Principal struct {
	ID    string
	Name  string
	Email string // set for OIDC principals only
}

// Auth creates authentication middleware. Requests authenticate with a
// Bearer token that is either a service API key or, when an OIDC verifier
// is configured, an ID token from the dashboard's identity provider.
func Auth(store storage.Storage, bootstrapKey string, verifier *auth.OIDCVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"code":401,"message":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, `{"code":401,"message":"invalid authorization header format"}`, http.StatusUnauthorized)
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == "" {
				http.Error(w, `{"code":401,"message":"empty bearer token"}`, http.StatusUnauthorized)
				return
			}

			ctx := r.Context()

			// Service API keys carry the fck_ prefix; everything else is
			// treated as an OIDC token when a verifier is configured.
			if !strings.HasPrefix(token, "fck_") && verifier != nil {
				claims, err := verifier.Verify(ctx, token)
				if err != nil {
					http.Error(w, `{"code":401,"message":"invalid token"}`, http.StatusUnauthorized)
					return
				}
				ctx = context.WithValue(ctx, PrincipalContextKey, &Principal{
					ID:    claims.Subject,
					Name:  claims.Name,
					Email: claims.Email,
				})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// Check if we have any API keys in the database
			keyCount, err := store.CountAPIKeys(ctx)
			if err != nil {
				http.Error(w, `{"code":500,"message":"internal server error"}`, http.StatusInternalServerError)
				return
			}

			// If no keys exist and bootstrap key is set, allow bootstrap key
			if keyCount == 0 && bootstrapKey != "" {
				if subtle.ConstantTimeCompare([]byte(token), []byte(bootstrapKey)) == 1 {
					ctx = context.WithValue(ctx, PrincipalContextKey, &Principal{
						ID:   "bootstrap",
						Name: "Bootstrap Key",
					})
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			// Hash the provided key and look it up
			keyHash := hashAPIKey(token)
			storedKey, err := store.GetAPIKeyByHash(ctx, keyHash)
			if err != nil {
				if err == domain.ErrNotFound {
					http.Error(w, `{"code":401,"message":"invalid API key"}`, http.StatusUnauthorized)
					return
				}
				http.Error(w, `{"code":500,"message":"internal server error"}`, http.StatusInternalServerError)
				return
			}

			// Update last used timestamp (fire and forget)
			go func() {
				_ = store.UpdateAPIKeyLastUsed(context.Background(), storedKey.ID)
			}()

			ctx = context.WithValue(ctx, PrincipalContextKey, &Principal{
				ID:   storedKey.ID,
				Name: storedKey.Name,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// hashAPIKey creates a SHA-256 hash of the API key.
// We use SHA-256 for fast lookups since API keys are already high-entropy random strings.
func hashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// GetPrincipalFromContext retrieves the authenticated principal from the
// request context.
func GetPrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(PrincipalContextKey).(*Principal)
	return p
}
