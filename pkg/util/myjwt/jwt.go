package myjwt

import (
	"errors"
	"time"

	"MarketFlow/pkg/util"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin 允许调用管理接口的角色
const RoleAdmin = "admin"

var (
	ErrEmptyKey     = errors.New("jwt key is empty")
	ErrInvalidToken = errors.New("invalid token")
)

type CustomClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Signer 负责签发和校验管理接口令牌
type Signer struct {
	key    []byte
	issuer string
	expire time.Duration
}

func NewSigner(key, issuer string, expireHours int) (*Signer, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if expireHours <= 0 {
		expireHours = 24
	}
	return &Signer{
		key:    []byte(key),
		issuer: issuer,
		expire: time.Duration(expireHours) * time.Hour,
	}, nil
}

func (s *Signer) GenerateToken(subject, role string) (string, error) {
	now := time.Now()
	claims := CustomClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        util.GenerateShortUUID(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expire)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

func (s *Signer) ParseToken(tokenString string) (*CustomClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
