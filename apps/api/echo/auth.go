package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/auth"
	"github.com/trezcool/escola/core/user"
)

const (
	contextTokenKey   = "userToken"
	contextActorKey   = "actor"
	contextSessionKey = "session"

	tokenAudience = "Escola"
)

// Claims represents the authorization claims transmitted via a JWT.
// The session id travels as the standard `jti`; the role is informative, every request resolves it again.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64     `json:"oriat,omitempty"`
	Email        string    `json:"email,omitempty"`
	Role         user.Role `json:"role,omitempty"`
}

// tokenIssuer signs and checks the API's tokens.
type tokenIssuer struct {
	issuer       string
	key          []byte
	expiry       time.Duration
	refreshDelta time.Duration
	now          func() time.Time
}

func newTokenIssuer(conf *core.Config) tokenIssuer {
	return tokenIssuer{
		issuer:       conf.AppName,
		key:          []byte(conf.SecretKey),
		expiry:       conf.JWTExpirationDelta,
		refreshDelta: conf.JWTRefreshExpirationDelta,
		now:          time.Now,
	}
}

func (ti tokenIssuer) jwtConfig() middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    ti.key,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// claims returns the claims of session sid for usr. origIat is kept across refreshes.
func (ti tokenIssuer) claims(sid string, usr user.Actor, origIat ...int64) *Claims {
	now := ti.now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        sid,
			Issuer:    ti.issuer,
			Subject:   usr.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(ti.expiry).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Email:        usr.Email,
		Role:         usr.Role,
	}
}

// sign generates a signed JWT token string representing the Claims.
func (ti tokenIssuer) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(ti.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (ti tokenIssuer) refreshable(claims Claims) bool {
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(ti.refreshDelta)
	return !ti.now().After(expTime)
}

// GenerateToken signs a token for session sid of usr with conf's secret.
func GenerateToken(conf *core.Config, sid string, usr user.Actor) (string, error) {
	ti := newTokenIssuer(conf)
	return ti.sign(ti.claims(sid, usr))
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func contextActor(ctx echo.Context) (user.Actor, bool) {
	actor, ok := ctx.Get(contextActorKey).(user.Actor)
	return actor, ok
}

func getContextActor(ctx echo.Context) (user.Actor, error) {
	if actor, ok := contextActor(ctx); ok {
		return actor, nil
	}
	return user.Actor{}, errUnauthorized
}

func getContextSession(ctx echo.Context) (*auth.Session, error) {
	if s, ok := ctx.Get(contextSessionKey).(*auth.Session); ok {
		return s, nil
	}
	return nil, errUnauthorized
}

// sessionMiddleware resolves the session behind the token on every request, so that a revoked role
// or a signed-out session is rejected even while the token has not expired.
func sessionMiddleware(sessions *auth.Manager, users *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.Id == "" || claims.Subject == "" {
				return errUnauthorized
			}

			rctx := ctx.Request().Context()
			s, err := sessions.Resolve(rctx, claims.Id, claims.Subject)
			if err != nil {
				if errors.Cause(err) == auth.ErrAccessRevoked {
					return errAccessRevoked
				}
				return errors.Wrap(err, "resolving session")
			}

			actor, err := users.Actor(rctx, claims.Subject, s.Role())
			if err != nil {
				if core.IsNotFound(err) {
					return errAccessRevoked
				}
				return errors.Wrap(err, "getting actor")
			}

			ctx.Set(contextSessionKey, s)
			ctx.Set(contextActorKey, actor)
			return next(ctx)
		}
	}
}
