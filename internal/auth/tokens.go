package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid access token")
	ErrTokenExpired = errors.New("access token is expired")
)

type AccessClaims struct {
	Sub      string `json:"sub"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Iss      string `json:"iss"`
	Iat      int64  `json:"iat"`
	Exp      int64  `json:"exp"`
}

// TokenManager issues and verifies HS256 signed bearer tokens.
type TokenManager struct {
	secret         []byte
	issuer         string
	accessTokenTTL time.Duration
	now            func() time.Time
}

func NewTokenManager(secret, issuer string, accessTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:         []byte(secret),
		issuer:         issuer,
		accessTokenTTL: accessTTL,
		now:            time.Now,
	}
}

func (m *TokenManager) IssueAccessToken(user User) (string, time.Time, error) {
	now := m.now().UTC()
	expiresAt := now.Add(m.accessTokenTTL)

	claims := AccessClaims{
		Sub:      user.ID,
		Username: user.Username,
		Role:     user.Role,
		Iss:      m.issuer,
		Iat:      now.Unix(),
		Exp:      expiresAt.Unix(),
	}

	headerBytes, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("marshal jwt header: %w", err)
	}
	payloadBytes, err := json.Marshal(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("marshal jwt claims: %w", err)
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerBytes) + "." + base64.RawURLEncoding.EncodeToString(payloadBytes)
	signature := base64.RawURLEncoding.EncodeToString(m.sign(signingInput))
	return signingInput + "." + signature, expiresAt, nil
}

func (m *TokenManager) ParseAccessToken(token string) (AccessClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return AccessClaims{}, fmt.Errorf("%w: malformed", ErrInvalidToken)
	}

	providedSig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return AccessClaims{}, fmt.Errorf("%w: signature encoding", ErrInvalidToken)
	}
	if !hmac.Equal(m.sign(parts[0]+"."+parts[1]), providedSig) {
		return AccessClaims{}, fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return AccessClaims{}, fmt.Errorf("%w: payload encoding", ErrInvalidToken)
	}
	var claims AccessClaims
	if err := json.Unmarshal(payloadBytes, &claims); err != nil {
		return AccessClaims{}, fmt.Errorf("%w: payload", ErrInvalidToken)
	}

	if claims.Exp < m.now().UTC().Unix() {
		return AccessClaims{}, ErrTokenExpired
	}
	if claims.Iss != m.issuer {
		return AccessClaims{}, fmt.Errorf("%w: issuer", ErrInvalidToken)
	}
	if claims.Sub == "" {
		return AccessClaims{}, fmt.Errorf("%w: subject", ErrInvalidToken)
	}

	return claims, nil
}

func (m *TokenManager) sign(signingInput string) []byte {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(signingInput))
	return mac.Sum(nil)
}
