package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/movie-comments/internal/domain"
)

// ErrInvalidToken is returned for tokens that fail signature, lifetime, issuer or audience checks.
var ErrInvalidToken = errors.New("invalid token")

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// TokenSettings configures a TokenManager.
type TokenSettings struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// NewTokenManager builds a new manager. Settings are validated at config load.
func NewTokenManager(settings TokenSettings) *TokenManager {
	ttl := settings.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{
		secret:   []byte(settings.Secret),
		issuer:   settings.Issuer,
		audience: settings.Audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Claims describes JWT payload.
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// GenerateToken builds and signs a JWT for the user.
func (tm *TokenManager) GenerateToken(user *domain.User) (string, time.Time, error) {
	now := tm.now().UTC()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		Name:  user.Username,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    tm.issuer,
			Audience:  jwt.ClaimStrings{tm.audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	// JWT times have second precision; report what the token actually says.
	return tokenString, claims.ExpiresAt.Time, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	},
		jwt.WithIssuer(tm.issuer),
		jwt.WithAudience(tm.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TTL reports the access token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}
