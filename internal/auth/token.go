package auth

import (
	"errors"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind separates session tokens from anti-forgery nonces.
type TokenKind string

const (
	TokenKindAccess TokenKind = "access"
	TokenKindNonce  TokenKind = "nonce"
)

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret   []byte
	ttl      time.Duration
	nonceTTL time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttlMinutes, nonceTTLMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	if nonceTTLMinutes <= 0 {
		nonceTTLMinutes = 720
	}
	return &TokenManager{
		secret:   []byte(secret),
		ttl:      time.Duration(ttlMinutes) * time.Minute,
		nonceTTL: time.Duration(nonceTTLMinutes) * time.Minute,
	}
}

// Claims describes JWT payload.
type Claims struct {
	PrincipalID int64     `json:"pid"`
	Kind        TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// GenerateToken builds and signs a session token for the principal.
func (tm *TokenManager) GenerateToken(principalID int64) (string, time.Time, error) {
	return tm.sign(principalID, TokenKindAccess, tm.ttl)
}

// GenerateNonce builds the anti-forgery nonce bound to the principal.
func (tm *TokenManager) GenerateNonce(principalID int64) (string, time.Time, error) {
	return tm.sign(principalID, TokenKindNonce, tm.nonceTTL)
}

func (tm *TokenManager) sign(principalID int64, kind TokenKind, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		PrincipalID: principalID,
		Kind:        kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(principalID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates a session token and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	return tm.parse(tokenStr, TokenKindAccess)
}

// VerifyNonce checks that nonce was issued for principalID and has not expired.
func (tm *TokenManager) VerifyNonce(nonce string, principalID int64) error {
	claims, err := tm.parse(nonce, TokenKindNonce)
	if err != nil {
		return err
	}
	if claims.PrincipalID != principalID {
		return errors.New("nonce issued for another principal")
	}
	return nil
}

func (tm *TokenManager) parse(tokenStr string, kind TokenKind) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Kind != kind {
		return nil, errors.New("unexpected token kind")
	}
	return claims, nil
}
