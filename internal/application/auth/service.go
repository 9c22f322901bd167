package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"change-server/internal/infrastructure/config"
	otelinfra "change-server/internal/infrastructure/observability/otel"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ClaimKioskID キオスクIDを格納するJWTクレーム名
const ClaimKioskID = "kiosk_id"

// ErrInvalidKioskID 無効なキオスクIDエラー
var ErrInvalidKioskID = errors.New("invalid kiosk_id")

var kioskIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]{1,64}$`)

// AuthApplicationService 認証アプリケーションサービス
type AuthApplicationService struct {
	jwtConfig *config.JWTConfig
	logger    *otelinfra.Logger
	now       func() time.Time
}

// NewAuthApplicationService 新しいAuthApplicationServiceを作成
func NewAuthApplicationService(jwtConfig *config.JWTConfig, logger *otelinfra.Logger) *AuthApplicationService {
	return &AuthApplicationService{
		jwtConfig: jwtConfig,
		logger:    logger,
		now:       time.Now,
	}
}

// IssueKioskToken キオスク端末用のJWTトークンを発行
func (s *AuthApplicationService) IssueKioskToken(ctx context.Context, req *IssueKioskTokenRequest) (*IssueKioskTokenResponse, error) {
	ctx, span := otel.Tracer("auth-service").Start(ctx, "AuthApplicationService.IssueKioskToken")
	defer span.End()

	span.SetAttributes(attribute.String("kiosk_id", req.KioskID))

	if !kioskIDRegex.MatchString(req.KioskID) {
		err := fmt.Errorf("%w: %q", ErrInvalidKioskID, req.KioskID)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn(ctx, "Rejected kiosk token request", map[string]interface{}{
			"kiosk_id": req.KioskID,
		})
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(s.jwtConfig.Expiration)

	claims := jwt.MapClaims{
		ClaimKioskID: req.KioskID,
		"iss":        s.jwtConfig.Issuer,
		"iat":        now.Unix(),
		"exp":        expiresAt.Unix(),
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error(ctx, "Failed to sign kiosk token", err, map[string]interface{}{
			"kiosk_id": req.KioskID,
		})
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Info(ctx, "Kiosk token issued", map[string]interface{}{
		"kiosk_id":   req.KioskID,
		"expires_at": expiresAt.Unix(),
	})

	return &IssueKioskTokenResponse{
		Token:     tokenString,
		ExpiresIn: int64(s.jwtConfig.Expiration.Seconds()),
		TokenType: "Bearer",
	}, nil
}
