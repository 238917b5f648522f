package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adswadi/agency-site-backend/config"
	"github.com/adswadi/agency-site-backend/errs"
	"github.com/adswadi/agency-site-backend/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// TokenTTL is the lifetime of an access token.
const TokenTTL = 24 * time.Hour

// DevJWTSecret is only accepted outside production.
const DevJWTSecret = "agency-site-dev-secret-change-me"

// Claims carried in an access token.
type Claims struct {
	ID       uint        `json:"id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    TokenTTL,
		now:    time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Issue signs a token for user that expires after TokenTTL.
func (s *TokenService) Issue(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errs.NewInternalErrorWithCause("failed to sign token", err)
	}
	return signed, nil
}

// Verify returns the claims of a valid token. An empty token is a missing
// token; anything else that fails to verify is an invalid token.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errs.NewMissingTokenError()
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errs.NewInvalidTokenError()
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errs.NewInvalidTokenError()
}

// SecretFetcher loads a secret value by parameter name.
type SecretFetcher func(ctx context.Context, name string) (string, error)

// ResolveJWTSecret picks the signing secret: JWT_SECRET, then the SSM
// parameter named by JWT_SECRET_SSM_PARAM, then DevJWTSecret outside production.
func ResolveJWTSecret(ctx context.Context, c map[string]string, fetch SecretFetcher) (string, error) {
	if secret := config.GetString(c, "JWT_SECRET", ""); secret != "" {
		return secret, nil
	}

	if param := config.GetString(c, "JWT_SECRET_SSM_PARAM", ""); param != "" {
		if fetch == nil {
			fetch = FetchSSMParameter
		}
		secret, err := fetch(ctx, param)
		if err != nil {
			return "", errs.NewConfigError("JWT_SECRET_SSM_PARAM", err)
		}
		if secret == "" {
			return "", errs.NewInvalidConfigError("JWT_SECRET_SSM_PARAM", "parameter is empty")
		}
		return secret, nil
	}

	if config.IsProduction(c) {
		return "", errs.NewInvalidConfigError("JWT_SECRET", "must be set in production")
	}
	log.Warn().Msg("JWT_SECRET not set, using development secret")
	return DevJWTSecret, nil
}

// FetchSSMParameter reads a SecureString from AWS Systems Manager Parameter Store.
func FetchSSMParameter(ctx context.Context, name string) (string, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}
	out, err := ssm.NewFromConfig(cfg).GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", name, err)
	}
	if out.Parameter == nil {
		return "", fmt.Errorf("parameter %s has no value", name)
	}
	return aws.ToString(out.Parameter.Value), nil
}
