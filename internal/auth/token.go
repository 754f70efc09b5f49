package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims are the registered JWT claims plus the token type, so a refresh
// token can never be presented as an access token.
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens for locally registered users.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock replaces the time source used for issuing and validating.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

func (i *Issuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

func (i *Issuer) sign(userID, tokenType string, ttl time.Duration) (string, Claims, error) {
	now := i.now()
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, claims, nil
}

// IssueAccess returns a signed access token for userID.
func (i *Issuer) IssueAccess(userID string) (string, error) {
	signed, _, err := i.sign(userID, TokenTypeAccess, i.accessTTL)
	return signed, err
}

// IssueRefresh returns a signed refresh token and its unique id.
func (i *Issuer) IssueRefresh(userID string) (string, string, error) {
	signed, claims, err := i.sign(userID, TokenTypeRefresh, i.refreshTTL)
	return signed, claims.ID, err
}

// Parse verifies the signature, expiry and type of raw.
func (i *Issuer) Parse(raw, tokenType string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("%w: expected %s token", ErrUnauthenticated, tokenType)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: subject claim not found in token", ErrUnauthenticated)
	}
	return claims, nil
}

func (i *Issuer) VerifyAccess(_ context.Context, raw string) (string, error) {
	claims, err := i.Parse(raw, TokenTypeAccess)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ExtractTokenFromRequest extracts a bearer token from the Authorization header.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}
	return parts[1], nil
}
