package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const CookieName = "billed_session"

var (
	ErrInvalidToken = errors.New("invalid or expired session")
	ErrMissingToken = errors.New("session cookie required")
)

// Manager issues and validates session tokens.
type Manager struct {
	secretKey     []byte
	tokenDuration time.Duration
	secureCookie  bool
	now           func() time.Time
}

// Claims are the JWT claims of a session token.
type Claims struct {
	Email string `json:"email"`
	Type  Type   `json:"type"`
	jwt.RegisteredClaims
}

func NewManager(secretKey string, tokenDuration time.Duration) *Manager {
	return &Manager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
		now:           time.Now,
	}
}

// SecureCookies marks issued cookies Secure, for deployments behind TLS.
func (m *Manager) SecureCookies(on bool) *Manager {
	m.secureCookie = on
	return m
}

// Generate creates a signed token for the user.
func (m *Manager) Generate(u User) (string, error) {
	if err := u.Validate(); err != nil {
		return "", err
	}
	now := m.now()
	claims := &Claims{
		Email: u.Email,
		Type:  u.Type,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Validate parses a token and returns the user it was issued for.
func (m *Manager) Validate(tokenString string) (User, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return User{}, ErrInvalidToken
	}
	u := User{Type: claims.Type, Email: claims.Email}
	if err := u.Validate(); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return u, nil
}

// SetCookie issues a session cookie for the user.
func (m *Manager) SetCookie(w http.ResponseWriter, u User) error {
	token, err := m.Generate(u)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.tokenDuration.Seconds()),
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest reads and validates the session cookie.
func (m *Manager) FromRequest(r *http.Request) (User, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return User{}, ErrMissingToken
	}
	return m.Validate(c.Value)
}
