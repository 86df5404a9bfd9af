package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAdminPassword is used when no password is configured.
	DefaultAdminPassword = "admin"
	// DefaultCookieName names the admin capability cookie.
	DefaultCookieName = "admin_auth"
	// DefaultCookieTTL is the lifetime of the admin capability cookie.
	DefaultCookieTTL = 7 * 24 * time.Hour

	adminCapability = "admin"
	defaultIssuer   = "dharma-api"
)

var (
	ErrMissingAdminPassword = errors.New("admin gate: password required")
	ErrMissingAdminToken    = errors.New("admin gate: token required")
	ErrInvalidAdminToken    = errors.New("admin gate: invalid token")
	ErrExpiredAdminToken    = errors.New("admin gate: token expired")
)

// AdminClaims is the payload of the admin capability cookie.
type AdminClaims struct {
	Capability string `json:"cap"`
	jwt.RegisteredClaims
}

// AdminGateConfig describes the shared secret and cookie policy.
type AdminGateConfig struct {
	Password      string
	SigningSecret []byte
	Issuer        string
	CookieName    string
	CookieTTL     time.Duration
	Clock         func() time.Time
}

// AdminGate checks the shared admin password and issues and validates the
// signed capability cookie that unlocks mutating link operations.
type AdminGate struct {
	password      []byte
	signingSecret []byte
	issuer        string
	cookieName    string
	cookieTTL     time.Duration
	clock         func() time.Time
}

// NewAdminGate constructs a gate. The password doubles as signing secret when
// no dedicated secret is configured.
func NewAdminGate(cfg AdminGateConfig) (*AdminGate, error) {
	if cfg.Password == "" {
		return nil, ErrMissingAdminPassword
	}
	signingSecret := cfg.SigningSecret
	if len(signingSecret) == 0 {
		signingSecret = []byte(cfg.Password)
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	ttl := cfg.CookieTTL
	if ttl <= 0 {
		ttl = DefaultCookieTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &AdminGate{
		password:      []byte(cfg.Password),
		signingSecret: append([]byte(nil), signingSecret...),
		issuer:        issuer,
		cookieName:    cookieName,
		cookieTTL:     ttl,
		clock:         clock,
	}, nil
}

// CookieName returns the cookie name carrying the capability token.
func (g *AdminGate) CookieName() string {
	return g.cookieName
}

// CookieTTL returns the lifetime of an issued capability token.
func (g *AdminGate) CookieTTL() time.Duration {
	return g.cookieTTL
}

// CheckPassword compares the candidate with the shared password in constant time.
func (g *AdminGate) CheckPassword(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), g.password) == 1
}

// IssueToken signs a capability token valid for the configured TTL.
func (g *AdminGate) IssueToken() (string, error) {
	now := g.clock().UTC()
	claims := AdminClaims{
		Capability: adminCapability,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   adminCapability,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.cookieTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.signingSecret)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature, issuer, expiry and capability.
func (g *AdminGate) ValidateToken(tokenString string) error {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return ErrMissingAdminToken
	}

	claims := &AdminClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			return g.signingSecret, nil
		},
		jwt.WithIssuer(g.issuer),
		jwt.WithTimeFunc(g.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredAdminToken
		}
		return fmt.Errorf("%w: %v", ErrInvalidAdminToken, err)
	}
	if parsed == nil || !parsed.Valid || claims.Capability != adminCapability {
		return ErrInvalidAdminToken
	}
	return nil
}

// ValidateRequest extracts the capability cookie from the request and validates it.
func (g *AdminGate) ValidateRequest(r *http.Request) error {
	if r == nil {
		return ErrMissingAdminToken
	}
	cookie, err := r.Cookie(g.cookieName)
	if err != nil || cookie == nil {
		return ErrMissingAdminToken
	}
	return g.ValidateToken(cookie.Value)
}
