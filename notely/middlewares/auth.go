// notely/middlewares/auth.go
package middlewares

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"notely/notely/config"
	"notely/notely/utils/logging"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// UserID returns the authenticated subject put into ctx by AuthMiddleware.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}

// ParseToken validates an HS256 access token against secret and returns its subject.
func ParseToken(secret, tokenStr string) (string, error) {
	if secret == "" {
		return "", errors.New("server is not configured to validate JWTs")
	}
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenSignatureInvalid
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("user id (sub) claim is missing or invalid")
	}
	return sub, nil
}

// AuthMiddleware requires a bearer token. Websocket clients that cannot set headers may
// pass it as the token query parameter.
func AuthMiddleware(cfg config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := ""
			if auth := r.Header.Get("Authorization"); auth != "" {
				parts := strings.Split(auth, " ")
				if len(parts) != 2 || parts[0] != "Bearer" {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				tokenStr = parts[1]
			} else {
				tokenStr = r.URL.Query().Get("token")
			}
			if tokenStr == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			userID, err := ParseToken(cfg.SupabaseJWTSecret, tokenStr)
			if err != nil {
				logging.RequestLogger.Info("rejected token",
					zap.String("trace_id", logging.TraceID(r.Context())), zap.Error(err))
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
