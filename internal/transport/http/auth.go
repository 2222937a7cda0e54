package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"edu-quiz-service/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by identity tokens.
type Claims struct {
	Name     string      `json:"name"`
	Email    string      `json:"email,omitempty"`
	Role     domain.Role `json:"role"`
	SchoolID string      `json:"school_id,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 identity tokens issued with a shared secret.
type Authenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Verify parses a raw token and returns the identity it carries.
func (a *Authenticator) Verify(raw string) (domain.Identity, error) {
	if raw == "" {
		return domain.Identity{}, domain.ErrMissingToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	if claims.Subject == "" || !validRole(claims.Role) {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	return domain.Identity{
		UserID:   claims.Subject,
		Name:     claims.Name,
		Email:    claims.Email,
		Role:     claims.Role,
		SchoolID: claims.SchoolID,
	}, nil
}

// Sign issues a token for who that expires after ttl.
func (a *Authenticator) Sign(who domain.Identity, ttl time.Duration) (string, error) {
	if who.UserID == "" || !validRole(who.Role) {
		return "", errors.New("identity needs a user id and a known role")
	}
	now := a.now()
	claims := Claims{
		Name:     who.Name,
		Email:    who.Email,
		Role:     who.Role,
		SchoolID: who.SchoolID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   who.UserID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticate reads the bearer token from the Authorization header, or from the token query
// parameter for WebSocket clients that cannot set headers.
func (a *Authenticator) Authenticate(r *http.Request) (domain.Identity, error) {
	raw := ""
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			return domain.Identity{}, domain.ErrInvalidToken
		}
		raw = strings.TrimSpace(token)
	} else {
		raw = r.URL.Query().Get("token")
	}
	return a.Verify(raw)
}

func validRole(role domain.Role) bool {
	switch role {
	case domain.RoleStudent, domain.RoleTeacher, domain.RoleSchoolAdmin, domain.RoleSuperAdmin:
		return true
	}
	return false
}
