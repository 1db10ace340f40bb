// Package auth issues and verifies the signed bearer tokens that gate every
// protected call. Verification is stateless: a token is accepted purely on
// signature and expiry, without touching the session store. The trade-off is
// that a token cannot be revoked before it expires; expiry is kept at 12
// hours for that reason.
package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"vigia.dev/patroltrack/internal/util"
)

type Claims struct {
	PrincipalId    uint64 `json:"principal_id"`
	EmployeeNumber string `json:"employee_number"`
	Role           string `json:"role"`
	Name           string `json:"name"`
	jwt.RegisteredClaims
}

func NewToken(secret string, ttl time.Duration, claims Claims) (string, error) {
	now := time.Now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(claims.PrincipalId, 10),
		ID:        util.GenUUID(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
