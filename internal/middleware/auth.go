package middleware

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"careplan/internal/apperror"
	"careplan/internal/config"
	"careplan/internal/database"
	"careplan/internal/user"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const userLocalKey = "user"

// IdentityResolver maps verified token claims onto a user row.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, claims user.Claims) (database.User, error)
}

// Authenticator verifies Keycloak bearer tokens and loads the matching user.
type Authenticator struct {
	logger   *slog.Logger
	key      *rsa.PublicKey
	issuer   string
	insecure bool
	identity IdentityResolver
}

func NewAuthenticator(logger *slog.Logger, cfg config.AuthConfig, identity IdentityResolver) (*Authenticator, error) {
	a := &Authenticator{logger: logger, issuer: cfg.Issuer, insecure: cfg.Insecure, identity: identity}
	if cfg.PublicKeyPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("middleware: failed to parse auth public key: %w", err)
		}
		a.key = key
	}
	if a.key == nil && !a.insecure {
		return nil, fmt.Errorf("middleware: AUTH_PUBLIC_KEY is required unless AUTH_INSECURE is set")
	}
	if a.insecure {
		logger.Warn("Token signatures are not verified (AUTH_INSECURE)")
	}
	return a, nil
}

// Authenticated rejects requests without a valid bearer token and stores the
// resolved user in the request locals.
func (a *Authenticator) Authenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return apperror.Unauthorized("Missing Authorization header")
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return apperror.Unauthorized("Invalid Authorization header")
		}

		claims, err := a.verify(raw)
		if err != nil {
			a.logger.DebugContext(c.UserContext(), "Rejected bearer token", "error", err)
			return apperror.Unauthorized("Invalid token")
		}

		u, err := a.identity.ResolveIdentity(c.UserContext(), claims)
		if err != nil {
			return err
		}
		c.Locals(userLocalKey, u)
		return c.Next()
	}
}

func (a *Authenticator) verify(raw string) (user.Claims, error) {
	mapClaims := jwt.MapClaims{}
	if a.insecure && a.key == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(raw, mapClaims); err != nil {
			return user.Claims{}, err
		}
		if err := checkExpiry(mapClaims, time.Now()); err != nil {
			return user.Claims{}, err
		}
		if a.issuer != "" {
			if iss, _ := mapClaims.GetIssuer(); iss != a.issuer {
				return user.Claims{}, jwt.ErrTokenInvalidIssuer
			}
		}
	} else {
		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}), jwt.WithExpirationRequired()}
		if a.issuer != "" {
			opts = append(opts, jwt.WithIssuer(a.issuer))
		}
		token, err := jwt.ParseWithClaims(raw, mapClaims, func(t *jwt.Token) (any, error) {
			return a.key, nil
		}, opts...)
		if err != nil {
			return user.Claims{}, err
		}
		if !token.Valid {
			return user.Claims{}, errors.New("token is not valid")
		}
	}

	claims := user.Claims{
		Subject:      claimString(mapClaims, "sub"),
		Email:        claimString(mapClaims, "email"),
		Name:         claimString(mapClaims, "name"),
		Organization: claimString(mapClaims, "organization"),
	}
	if claims.Subject == "" {
		return claims, fmt.Errorf("token has no subject")
	}
	if claims.Name == "" {
		claims.Name = claimString(mapClaims, "preferred_username")
	}
	return claims, nil
}

// checkExpiry applies the time based checks of a verified parse to an
// unverified token.
func checkExpiry(claims jwt.MapClaims, now time.Time) error {
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return err
	}
	if exp != nil && !now.Before(exp.Time) {
		return jwt.ErrTokenExpired
	}
	nbf, err := claims.GetNotBefore()
	if err != nil {
		return err
	}
	if nbf != nil && now.Before(nbf.Time) {
		return jwt.ErrTokenNotValidYet
	}
	return nil
}

func claimString(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// CurrentUser returns the user stored by Authenticated.
func CurrentUser(c *fiber.Ctx) (database.User, bool) {
	u, ok := c.Locals(userLocalKey).(database.User)
	return u, ok
}

// RequireRole lets the request through when the current user holds any of roles.
func RequireRole(roles ...database.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, ok := CurrentUser(c)
		if !ok {
			return apperror.Unauthorized("Not authenticated")
		}
		for _, role := range roles {
			if u.HasRole(role) {
				return c.Next()
			}
		}
		return apperror.Forbidden("Insufficient permissions")
	}
}
