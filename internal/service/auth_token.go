package service

import (
	"strings"
	"time"

	"github.com/pasaph/internal/config"
	"github.com/pasaph/internal/constants"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims 访问令牌声明
type TokenClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken 签发 HS256 令牌
func IssueToken(secret, userID, role string, ttl time.Duration) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || secret == "" {
		return "", time.Time{}, ErrTokenInvalid
	}
	if !validRole(role) {
		return "", time.Time{}, ErrRoleInvalid
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := TokenClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken 校验并解析令牌
func ParseToken(secret, tokenString string) (*TokenClaims, error) {
	if secret == "" {
		return nil, ErrTokenInvalid
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, ErrTokenInvalid
	}
	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrTokenInvalid
	}
	if !validRole(claims.Role) {
		return nil, ErrRoleInvalid
	}
	return claims, nil
}

func validRole(role string) bool {
	return role == constants.RoleSeller || role == constants.RoleBuyer
}

// TokenService 基于配置的令牌服务
type TokenService struct {
	secret string
	ttl    time.Duration
}

// NewTokenService 创建令牌服务
func NewTokenService(cfg config.AuthConfig) *TokenService {
	return &TokenService{
		secret: cfg.SecretKey,
		ttl:    time.Duration(cfg.ExpireHours) * time.Hour,
	}
}

// Issue 签发令牌
func (s *TokenService) Issue(userID, role string) (string, time.Time, error) {
	return IssueToken(s.secret, userID, role, s.ttl)
}

// Parse 解析令牌
func (s *TokenService) Parse(tokenString string) (*TokenClaims, error) {
	if s == nil {
		return nil, ErrTokenInvalid
	}
	return ParseToken(s.secret, tokenString)
}
