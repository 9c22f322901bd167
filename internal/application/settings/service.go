package settings

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"change-server/internal/domain/change"
	"change-server/internal/domain/coin"
	"change-server/internal/domain/service"
	otelinfra "change-server/internal/infrastructure/observability/otel"
)

// SettingsApplicationService おつりポリシー設定のアプリケーションサービス
type SettingsApplicationService struct {
	settingsRepo  change.SettingsRepository
	changeService *service.ChangeService
	logger        *otelinfra.Logger
	tracer        trace.Tracer
}

// NewSettingsApplicationService 新しいSettingsApplicationServiceを作成
func NewSettingsApplicationService(
	settingsRepo change.SettingsRepository,
	changeService *service.ChangeService,
	logger *otelinfra.Logger,
) *SettingsApplicationService {
	return &SettingsApplicationService{
		settingsRepo:  settingsRepo,
		changeService: changeService,
		logger:        logger,
		tracer:        otel.Tracer("settings-service"),
	}
}

// Load 保存済みの設定を読み込んでポリシーに反映（起動時に呼ぶ）
func (s *SettingsApplicationService) Load(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "SettingsApplicationService.Load")
	defer span.End()

	stored, err := s.settingsRepo.GetAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to load settings: %w", err)
	}

	policy, err := change.ApplySettings(s.changeService.Policy(), stored)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}
	if err := s.changeService.UpdatePolicy(policy); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}

	s.logger.Info(ctx, "Change policy settings loaded", map[string]interface{}{
		"max_change_limit": policy.MaxChangeLimit,
		"overrides":        len(stored),
	})
	span.SetStatus(otelcodes.Ok, "settings loaded")
	return nil
}

// Get 適用中の設定を取得
func (s *SettingsApplicationService) Get(ctx context.Context) *SettingsResponse {
	return toResponse(s.changeService.Policy())
}

// Update 設定を保存し、以降の計算に即時反映
func (s *SettingsApplicationService) Update(ctx context.Context, req *UpdateSettingsRequest) (*SettingsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "SettingsApplicationService.Update")
	defer span.End()

	policy := s.changeService.Policy()
	updates := make(map[string]string)

	if req.MaxChangeLimit != nil {
		policy = policy.WithMaxChangeLimit(*req.MaxChangeLimit)
		updates[change.SettingMaxChangeLimit] = strconv.FormatInt(*req.MaxChangeLimit, 10)
		span.SetAttributes(attribute.Int64("max_change_limit", *req.MaxChangeLimit))
	}
	for value, n := range req.Reserves {
		d, err := coin.NewDenomination(value)
		if err == nil && !policy.Denominations.Contains(d) {
			err = fmt.Errorf("%w: %s is not configured", coin.ErrInvalidDenomination, d)
		}
		if err != nil {
			err = fmt.Errorf("%w: %v", change.ErrInvalidPolicy, err)
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, err
		}
		policy = policy.WithReserve(d, n)
		updates[change.ReserveKey(d)] = strconv.FormatInt(n, 10)
	}

	if err := policy.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	keys := make([]string, 0, len(updates))
	for key := range updates {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := s.settingsRepo.Set(ctx, key, updates[key]); err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			s.logger.Error(ctx, "Failed to persist setting", err, map[string]interface{}{
				"key": key,
			})
			return nil, fmt.Errorf("failed to persist settings: %w", err)
		}
	}

	if err := s.changeService.UpdatePolicy(policy); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	s.logger.Info(ctx, "Change policy settings updated", map[string]interface{}{
		"keys": keys,
	})
	span.SetStatus(otelcodes.Ok, "settings updated")
	return toResponse(policy), nil
}

func toResponse(p change.Policy) *SettingsResponse {
	reserves := make(map[int64]int64, p.Denominations.Len())
	for _, d := range p.Denominations.Descending() {
		reserves[d.Value()] = p.Reserve(d)
	}
	return &SettingsResponse{
		MaxChangeLimit: p.MaxChangeLimit,
		Reserves:       reserves,
	}
}
