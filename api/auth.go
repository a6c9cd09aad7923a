package api

import (
	"crypto"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWT 是存取權杖的宣告內容，Subject 為呼叫者的位址。
type JWT struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func ParseAndValidateJWT(tokenString string, secret crypto.Signer) (*JWT, error) {
	const op = "ParseJWT"
	token, err := jwt.ParseWithClaims(tokenString, &JWT{}, func(token *jwt.Token) (interface{}, error) {
		return secret.Public(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%s: token is invalid", op)
	}
	claims, ok := token.Claims.(*JWT)
	if !ok {
		return nil, fmt.Errorf("%s: token claims are invalid", op)
	}
	return claims, nil
}

// issueToken 簽發一個以 subject 為主體的存取權杖。
func issueToken(config AuthConfig, subject uuid.UUID, username string) (string, error) {
	const op = "issueToken"
	token := jwt.NewWithClaims(&jwt.SigningMethodEd25519{}, JWT{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(config.ExpireDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    config.Issuer,
			Subject:   subject.String(),
			ID:        uuid.NewString(),
			Audience:  []string{config.Audience},
		},
	})
	tokenString, err := token.SignedString(config.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to sign JWT, err=%w", op, err)
	}
	return tokenString, nil
}

// caller 從請求中解析出呼叫者的位址。
// 權杖可放在 Authorization: Bearer 標頭或 access_token cookie。
func (impl *ServerImpl) caller(c *gin.Context) (uuid.UUID, bool) {
	tokenString := ""
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		tokenString = strings.TrimPrefix(header, "Bearer ")
	} else if cookie, err := c.Cookie("access_token"); err == nil {
		tokenString = cookie
	}
	if tokenString == "" {
		return uuid.Nil, false
	}

	token, err := ParseAndValidateJWT(tokenString, impl.config.Auth.PrivateKey)
	if err != nil {
		return uuid.Nil, false
	}
	subject, err := uuid.Parse(token.Subject)
	if err != nil || subject == uuid.Nil {
		return uuid.Nil, false
	}
	return subject, true
}
