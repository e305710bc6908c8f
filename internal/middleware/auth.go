package middleware

import (
	"context"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// SessionHeader carries the customer JWT.
const SessionHeader = "X-Session-Token"

// ReadSecretHeader guards the internal read endpoints.
const ReadSecretHeader = "X-Read-Secret"

// Session is the authenticated identity of a request. The zero value
// is anonymous.
type Session struct {
	CustomerID string
	Email      string
}

// IsAnonymous reports whether the session carries no customer.
func (s Session) IsAnonymous() bool { return s.CustomerID == "" }

type sessionKey struct{}

// SessionFrom extracts the session placed on the context by
// SessionMiddleware.
func SessionFrom(ctx context.Context) Session {
	if s, ok := ctx.Value(sessionKey{}).(Session); ok {
		return s
	}
	return Session{}
}

// WithSession attaches a session to the context, for tests and for
// the per-request credential fallback.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// ParseToken verifies the session JWT and extracts its claims.
func ParseToken(tokenString, secret string) (Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return Session{}, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		s := Session{}
		if id, ok := claims["customer_id"].(string); ok {
			s.CustomerID = id
		}
		if email, ok := claims["email"].(string); ok {
			s.Email = email
		}
		return s, nil
	}
	return Session{}, nil
}

// IssueToken signs a session JWT, used by tests and the login flow.
func IssueToken(s Session, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"customer_id": s.CustomerID,
		"email":       s.Email,
	})
	return token.SignedString([]byte(secret))
}

// SessionMiddleware resolves the session header into a Session on the
// request context. Requests without a valid token stay anonymous;
// endpoints that need a customer enforce it themselves.
func SessionMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := r.Header.Get(SessionHeader); raw != "" {
				if s, err := ParseToken(raw, secret); err == nil {
					r = r.WithContext(WithSession(r.Context(), s))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireReadSecret rejects requests lacking the shared read secret.
func RequireReadSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" || r.Header.Get(ReadSecretHeader) != secret {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"Code": "AccessDenied", "Message": "read secret required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
