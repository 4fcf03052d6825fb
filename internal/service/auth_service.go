package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/provider-admission-api/internal/models"
	appErrors "github.com/noah-isme/provider-admission-api/pkg/errors"
)

// AuthConfig describes how access tokens from the hosted auth provider are verified.
type AuthConfig struct {
	AccessTokenSecret string
	Issuer            string
	Audience          []string
	Leeway            time.Duration
}

// AuthService verifies access tokens. Sign-in and session management live with the hosted provider.
type AuthService struct {
	logger *zap.Logger
	config AuthConfig
	parser *jwt.Parser
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(config.Leeway))
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	return &AuthService{logger: logger, config: config, parser: jwt.NewParser(opts...)}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := s.parser.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if !s.audienceAccepted(claims.Audience) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token audience not accepted")
	}
	if claims.Identity() == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token has no subject")
	}
	switch claims.Role {
	case models.RoleAdmin, models.RoleProvider, models.RoleFounder:
	default:
		s.logger.Debug("token carries unknown role", zap.String("role", string(claims.Role)))
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unsupported role")
	}

	return claims, nil
}

// audienceAccepted passes when no audience is configured or any token audience matches.
func (s *AuthService) audienceAccepted(audience jwt.ClaimStrings) bool {
	if len(s.config.Audience) == 0 {
		return true
	}
	for _, want := range s.config.Audience {
		for _, got := range audience {
			if want == got {
				return true
			}
		}
	}
	return false
}
