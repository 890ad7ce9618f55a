package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "shuttle-backend"

type JWTUtil struct {
	secretKey []byte
	expiry    time.Duration
}

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func NewJWTUtil(secret string, expiry time.Duration) *JWTUtil {
	if secret == "" {
		secret = "default-secret-key-change-this-in-production"
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &JWTUtil{
		secretKey: []byte(secret),
		expiry:    expiry,
	}
}

func (j *JWTUtil) GenerateToken(userID, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

func (j *JWTUtil) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secretKey, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		if claims.UserID == "" {
			return nil, errors.New("token has no user")
		}
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
