package auth

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Роли в токене
const (
	RoleLearner = "learner"
	RoleAdmin   = "admin"
)

// Аудитория токенов API экзаменов
const examAudience = "exam-api"

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrInvalidRole  = errors.New("invalid role in token")
)

// JWTCustomClaims содержит пользовательские поля токена
type JWTCustomClaims struct {
	LearnerID string `json:"learner_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin: токен выдан администратору
func (c *JWTCustomClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// JWTService выпускает и проверяет HMAC-токены учащихся и администраторов.
// Токены выпускает основной сервис маркетплейса; здесь нужна в основном проверка.
type JWTService struct {
	secret        []byte
	issuer        string
	expirationHrs int
	now           func() time.Time
}

// NewJWTService создает сервис JWT
func NewJWTService(secret, issuer string, expirationHrs int) (*JWTService, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	if expirationHrs <= 0 {
		expirationHrs = 24 // Default to 24 hours
	}
	return &JWTService{
		secret:        []byte(secret),
		issuer:        issuer,
		expirationHrs: expirationHrs,
		now:           time.Now,
	}, nil
}

// GenerateToken создает токен для учащегося с заданной ролью
func (s *JWTService) GenerateToken(learnerID, role string) (string, error) {
	if strings.TrimSpace(learnerID) == "" {
		return "", errors.New("learner id is required")
	}
	if role != RoleLearner && role != RoleAdmin {
		return "", ErrInvalidRole
	}

	now := s.now()
	claims := &JWTCustomClaims{
		LearnerID: learnerID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour * time.Duration(s.expirationHrs))),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Subject:   learnerID,
			Audience:  jwt.ClaimStrings{examAudience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		log.Printf("[JWT] Ошибка генерации токена для learner=%s: %v", learnerID, err)
		return "", err
	}
	return tokenString, nil
}

// ParseToken проверяет подпись, срок действия, издателя и аудиторию токена
func (s *JWTService) ParseToken(tokenString string) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Принимаем только HMAC, иначе возможна подмена алгоритма
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !claims.VerifyAudience(examAudience, true) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
	}
	if s.issuer != "" && !claims.VerifyIssuer(s.issuer, true) {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrInvalidToken)
	}
	if claims.LearnerID == "" {
		return nil, fmt.Errorf("%w: learner_id is empty", ErrInvalidToken)
	}
	if claims.Role != RoleLearner && claims.Role != RoleAdmin {
		return nil, ErrInvalidRole
	}
	return claims, nil
}
