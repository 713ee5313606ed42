package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/estudio-ia-videos/timeline-relay/pkg/state"
)

type PermissionCompiler func(names []string) (state.Permission, error)

// AppClaims defines our custom JWT claims structure. The subject carries the
// user id, "name" the display name, and "perms" the granted permission names.
type AppClaims struct {
	Name        string   `json:"name,omitempty"`
	Permissions []string `json:"perms,omitempty"`
	jwt.RegisteredClaims
}

// NewAuthMiddleware validates the handshake credential and binds the
// resulting identity to the request metadata. The token is looked up in the
// session cookie, the Authorization header, then the query string (browser
// editors use the cookie; other clients use the header or query parameter).
func NewAuthMiddleware(logger *slog.Logger, jwtSecret string, pCompiler PermissionCompiler) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// couldn't extract metadata from request so something went wrong with previous middlewares
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			tokenString := extractToken(r)
			if tokenString == "" {
				logger.Warn("Handshake missing credential", "ip", reqMeta.IP)
				http.Error(w, "Missing token", http.StatusUnauthorized)
				return
			}

			// Parse and validate the JWT token with HMAC signing
			token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				logger.Warn("Invalid JWT token presented", "ip", reqMeta.IP, slog.Any("error", err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(*AppClaims)
			if !ok {
				logger.Error("Failed to parse custom JWT claims", slog.String("ip", reqMeta.IP))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if claims.Subject == "" {
				logger.Warn("Valid token missing 'sub' claim", "ip", reqMeta.IP)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			perms, err := pCompiler(claims.Permissions)
			if err != nil {
				logger.Error("Token contains unregistered permissions",
					slog.String("ip", reqMeta.IP),
					slog.Any("error", err),
				)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			reqMeta.UserID = claims.Subject
			reqMeta.UserName = claims.Name
			reqMeta.GlobalPermissions = perms
			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie("session-token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
