package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/thevault/register/pkg/config"
	pkgerrors "github.com/thevault/register/pkg/errors"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// Session is the authenticated cashier context passed explicitly to every
// back-office call. It is never looked up from ambient state.
type Session struct {
	Token      string    `json:"-"`
	EmployeeID int64     `json:"employee_id"`
	Name       string    `json:"name,omitempty"`
	Role       string    `json:"role,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
	// Leeway is the clock skew tolerated past ExpiresAt, copied from the
	// parser so every layer applies the same expiry rule.
	Leeway time.Duration `json:"-"`
}

// Claims mirrors the access token issued by the back office.
type Claims struct {
	EmployeeID int64  `json:"employee_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Role       string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Bearer returns the Authorization header value for the session.
func (s Session) Bearer() string {
	return "Bearer " + s.Token
}

// Valid reports whether the session carries a token that has not expired at now.
func (s Session) Valid(now time.Time) bool {
	if strings.TrimSpace(s.Token) == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt.Add(s.Leeway))
}

// ErrSessionExpired is returned when the bearer token is past its expiry.
var ErrSessionExpired = pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired")

// ParseBearer turns a raw bearer token into a Session. When a secret is
// configured the signature is verified; otherwise the claims are decoded and
// only the expiry is enforced locally.
func ParseBearer(cfg config.AuthConfig, token string, now time.Time) (Session, error) {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return Session{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}

	claims := &Claims{}
	if cfg.JWTSecret != "" {
		_, err := jwt.ParseWithClaims(
			token,
			claims,
			func(t *jwt.Token) (interface{}, error) {
				if t.Method != jwtSigningMethod {
					return nil, fmt.Errorf("unexpected signing method %s", t.Header["alg"])
				}
				return []byte(cfg.JWTSecret), nil
			},
			jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
			jwt.WithLeeway(cfg.Leeway),
			jwt.WithTimeFunc(func() time.Time { return now }),
		)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return Session{}, ErrSessionExpired
			}
			return Session{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
		}
	} else {
		parser := jwt.NewParser(jwt.WithoutClaimsValidation())
		if _, _, err := parser.ParseUnverified(token, claims); err != nil {
			return Session{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
		}
		if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Add(cfg.Leeway)) {
			return Session{}, ErrSessionExpired
		}
	}

	employeeID := claims.EmployeeID
	if employeeID == 0 && claims.Subject != "" {
		parsed, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			return Session{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "token subject is not an employee id")
		}
		employeeID = parsed
	}
	if employeeID <= 0 {
		return Session{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no employee id")
	}

	session := Session{
		Token:      token,
		EmployeeID: employeeID,
		Name:       claims.Name,
		Role:       claims.Role,
		Leeway:     cfg.Leeway,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// Mint signs an HS256 token for the given employee. The register never issues
// tokens in production; this backs local tooling and tests.
func Mint(secret string, now time.Time, ttl time.Duration, employeeID int64, name, role string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	claims := Claims{
		EmployeeID: employeeID,
		Name:       name,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(employeeID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}
