package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はセッションCookieのトークンが不正または期限切れであることを示す。
var ErrInvalidToken = errors.New("invalid session token")

// TokenSigner はセッションIDをHS256で署名したトークンに変換する。
// Cookieに生のセッションIDを置かないために使う。
type TokenSigner struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenSigner は新しいTokenSignerを生成する。
func NewTokenSigner(secret, issuer string) *TokenSigner {
	return &TokenSigner{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// Sign はセッションIDを含むトークンを生成する。
func (s *TokenSigner) Sign(sessionID string, expiresAt time.Time) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        sessionID,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

// Parse はトークンを検証してセッションIDを返す。
// 署名、発行者、有効期限のいずれかが不正な場合はErrInvalidTokenを返す。
func (s *TokenSigner) Parse(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" {
		return "", fmt.Errorf("%w: missing session id", ErrInvalidToken)
	}
	return claims.ID, nil
}
