package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Auth checks the session cookie issued by the login service and
// injects the caller's identity into the request headers. Role checks
// stay here at the boundary; the order engine itself never sees roles.
type Auth interface {
	Middleware(h http.HandlerFunc) http.HandlerFunc
	AdminMiddleware(h http.HandlerFunc) http.HandlerFunc
	BuildToken(userCode string, role string, ttl time.Duration) (string, error)
}

const (
	HeaderUserCodeKey = "X-User-Code"
	HeaderUserRoleKey = "X-User-Role"
	cookieUserToken   = "pedidosUserToken"

	RoleClient = "client"
	RoleAdmin  = "admin"
)

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type auth struct {
	secret []byte
}

func NewAuth(secret string) Auth {
	return &auth{secret: []byte(secret)}
}

func (a *auth) Middleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userCode, role, err := a.getUserCode(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		r.Header.Set(HeaderUserCodeKey, userCode)
		r.Header.Set(HeaderUserRoleKey, role)

		h.ServeHTTP(w, r)
	}
}

func (a *auth) AdminMiddleware(h http.HandlerFunc) http.HandlerFunc {
	return a.Middleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderUserRoleKey) != RoleAdmin {
			http.Error(w, "admin role required", http.StatusForbidden)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// BuildToken mints a session token. The login service owns this in
// production; tests use it to forge sessions.
func (a *auth) BuildToken(userCode string, role string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userCode,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		Role: role,
	})
	return token.SignedString(a.secret)
}

func (a *auth) getUserCode(r *http.Request) (string, string, error) {
	tokenCookie, err := r.Cookie(cookieUserToken)
	if err != nil {
		return "", "", err
	}

	parsed := &claims{}
	token, err := jwt.ParseWithClaims(tokenCookie.Value, parsed, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", "", err
	}
	if !token.Valid || parsed.Subject == "" {
		return "", "", errors.New("invalid token")
	}
	return parsed.Subject, parsed.Role, nil
}

// CookieName is exported for clients setting the session cookie.
func CookieName() string { return cookieUserToken }
