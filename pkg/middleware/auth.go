package middleware

import (
	"errors"
	"fmt"
	"strings"

	"marketplace-ledger/pkg/config"
	"marketplace-ledger/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/fx"
)

var Module = fx.Module("middleware", fx.Provide(NewAuthenticator))

const (
	RoleProvider = "provider"
	RoleAdmin    = "admin"

	principalKey = "auth.principal"
)

// Claims issued by the identity provider. ProviderID falls back to Subject
// for provider accounts.
type Claims struct {
	Role       string `json:"role"`
	ProviderID string `json:"provider_id,omitempty"`
	jwt.RegisteredClaims
}

type Principal struct {
	UserID     string
	ProviderID string
	Role       string
}

// Authenticator verifies bearer tokens signed with AUTH_JWT_SECRET.
type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(cfg *config.Config) *Authenticator {
	return &Authenticator{
		secret: []byte(cfg.Auth.JWTSecret),
		issuer: cfg.Auth.Issuer,
	}
}

func (a *Authenticator) Parse(tokenString string) (*Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	p := &Principal{UserID: claims.Subject, Role: claims.Role, ProviderID: claims.ProviderID}
	if p.Role == RoleProvider && p.ProviderID == "" {
		p.ProviderID = claims.Subject
	}
	return p, nil
}

// Authenticate rejects requests without a valid bearer token.
func (a *Authenticator) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			_ = c.Error(errutil.Unauthorized("missing bearer token", nil))
			c.Abort()
			return
		}

		principal, err := a.Parse(raw)
		if err != nil {
			_ = c.Error(errutil.Unauthorized("invalid bearer token", err))
			c.Abort()
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireRole must run after Authenticate.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			_ = c.Error(errutil.Unauthorized("not authenticated", nil))
			c.Abort()
			return
		}
		for _, role := range roles {
			if p.Role == role {
				c.Next()
				return
			}
		}
		_ = c.Error(errutil.Forbidden("insufficient role", nil))
		c.Abort()
	}
}

func PrincipalFrom(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok
}
