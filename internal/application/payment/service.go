package payment

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"change-server/internal/domain/change"
	"change-server/internal/domain/service"
	otelinfra "change-server/internal/infrastructure/observability/otel"
)

// PaymentApplicationService 支払いアプリケーションサービス
type PaymentApplicationService struct {
	changeService *service.ChangeService
	logger        *otelinfra.Logger
	metrics       *otelinfra.Metrics
	tracer        trace.Tracer
}

// NewPaymentApplicationService 新しいPaymentApplicationServiceを作成
func NewPaymentApplicationService(
	changeService *service.ChangeService,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *PaymentApplicationService {
	return &PaymentApplicationService{
		changeService: changeService,
		logger:        logger,
		metrics:       metrics,
		tracer:        otel.Tracer("payment-service"),
	}
}

// SuggestPayments おつりを出せる支払額の候補を取得
func (s *PaymentApplicationService) SuggestPayments(ctx context.Context, req *SuggestPaymentsRequest) (*SuggestPaymentsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentApplicationService.SuggestPayments")
	defer span.End()

	span.SetAttributes(attribute.Int64("total_cost", req.TotalCost))

	suggestions, err := s.changeService.FindOptimalPaymentAmounts(ctx, req.TotalCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		if errors.Is(err, change.ErrNoValidSuggestions) {
			s.logger.Error(ctx, "No payment suggestions available", err, map[string]interface{}{
				"total_cost": req.TotalCost,
			})
		}
		return nil, err
	}

	resp := &SuggestPaymentsResponse{
		TotalCost:   req.TotalCost,
		Suggestions: make([]Suggestion, 0, len(suggestions)),
	}
	for _, sg := range suggestions {
		resp.Suggestions = append(resp.Suggestions, toSuggestion(sg))
	}

	span.SetAttributes(attribute.Int("suggestions_count", len(resp.Suggestions)))
	span.SetStatus(otelcodes.Ok, "suggestions generated")
	return resp, nil
}

// ValidatePayment 支払額を受け付けられるかを検証
// 業務上の拒否は Valid=false として返し、不正な入力のみエラーにする
func (s *PaymentApplicationService) ValidatePayment(ctx context.Context, req *ValidatePaymentRequest) (*ValidatePaymentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentApplicationService.ValidatePayment")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("total_cost", req.TotalCost),
		attribute.Int64("payment_amount", req.PaymentAmount),
	)

	v := s.changeService.ValidatePayment(ctx, req.TotalCost, req.PaymentAmount)
	if errors.Is(v.Reason, change.ErrInvalidAmount) {
		span.RecordError(v.Reason)
		span.SetStatus(otelcodes.Error, v.Reason.Error())
		return nil, v.Reason
	}

	result := "accepted"
	if !v.OK {
		result = ReasonCode(v.Reason)
	}
	s.metrics.RecordValidation(ctx, result)
	span.SetAttributes(attribute.String("result", result))

	if !v.OK {
		s.logger.Info(ctx, "Payment rejected", map[string]interface{}{
			"total_cost":     req.TotalCost,
			"payment_amount": req.PaymentAmount,
			"reason":         result,
		})
	}

	resp := &ValidatePaymentResponse{
		Valid:   v.OK,
		Change:  v.Change,
		Reason:  ReasonCode(v.Reason),
		Message: v.Info,
	}
	if v.OK {
		resp.Breakdown = v.Breakdown.ToValueMap()
	}

	span.SetStatus(otelcodes.Ok, "payment validated")
	return resp, nil
}

// BestPayment 受け付けられる最大の支払額を取得
func (s *PaymentApplicationService) BestPayment(ctx context.Context, req *BestPaymentRequest) (*BestPaymentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentApplicationService.BestPayment")
	defer span.End()

	span.SetAttributes(attribute.Int64("total_cost", req.TotalCost))

	best, err := s.changeService.FindBestPaymentAmount(ctx, req.TotalCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find best payment amount: %w", err)
	}

	span.SetAttributes(attribute.Int64("best_amount", best.Amount))
	span.SetStatus(otelcodes.Ok, "best payment found")
	return &BestPaymentResponse{
		TotalCost:  req.TotalCost,
		Suggestion: toSuggestion(best),
	}, nil
}

// ChangeStatus 現在のおつり払い出し能力を取得
func (s *PaymentApplicationService) ChangeStatus(ctx context.Context) (*ChangeStatusResponse, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentApplicationService.ChangeStatus")
	defer span.End()

	status, inv, err := s.changeService.GetChangeCapacity(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to read change capacity", err, nil)
		return nil, err
	}

	counts := valueMap(inv.Counts())
	s.metrics.RecordInventory(ctx, counts)

	span.SetAttributes(
		attribute.String("capacity_level", string(status.Level)),
		attribute.Int64("max_change", status.MaxChange),
	)
	span.SetStatus(otelcodes.Ok, "change status read")

	return &ChangeStatusResponse{
		Level:       string(status.Level),
		MaxChange:   status.MaxChange,
		Message:     status.Message,
		Inventory:   counts,
		Dispensable: valueMap(status.Dispensable),
		Reserves:    valueMap(status.Reserves),
	}, nil
}

func toSuggestion(sg change.PaymentSuggestion) Suggestion {
	return Suggestion{
		Amount:    sg.Amount,
		Change:    sg.Change,
		Tier:      sg.Tier.String(),
		Label:     sg.Label,
		Breakdown: sg.Breakdown.ToValueMap(),
	}
}
