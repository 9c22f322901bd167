package coin_acceptance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"change-server/internal/application/change_dispense"
	"change-server/internal/domain/acceptor"
	"change-server/internal/domain/coin"
	otelinfra "change-server/internal/infrastructure/observability/otel"
)

// unattendedReference 受付外に投入された硬貨の補充記録に付ける参照
const unattendedReference = "coin-acceptor"

// Acceptor 硬貨投入口
type Acceptor interface {
	SetEnabled(ctx context.Context, on bool) error
	Status(ctx context.Context) acceptor.Status
}

// Depositor 投入された硬貨を在庫に入れる
type Depositor interface {
	Deposit(ctx context.Context, req *change_dispense.DepositRequest) (*change_dispense.LedgerResponse, error)
}

type window struct {
	reference  string
	openedAt   time.Time
	coins      map[int64]int64
	total      int64
	unrecorded int64
}

// AcceptanceApplicationService 支払い受付（投入口のインヒビット解除と投入硬貨の計上）
// 同時に開ける受付は1つだけ
type AcceptanceApplicationService struct {
	acceptor  Acceptor
	depositor Depositor
	logger    *otelinfra.Logger
	metrics   *otelinfra.Metrics
	tracer    trace.Tracer
	newID     func() string
	now       func() time.Time

	mu     sync.Mutex
	window *window
}

// NewAcceptanceApplicationService 新しいAcceptanceApplicationServiceを作成
func NewAcceptanceApplicationService(
	acc Acceptor,
	depositor Depositor,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *AcceptanceApplicationService {
	return &AcceptanceApplicationService{
		acceptor:  acc,
		depositor: depositor,
		logger:    logger,
		metrics:   metrics,
		tracer:    otel.Tracer("acceptance-service"),
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// OpenWindow 支払い受付を開始し、投入口のインヒビットを解除する
// 同じ参照で開き直した場合は現在の受付を返す
func (s *AcceptanceApplicationService) OpenWindow(ctx context.Context, req *OpenWindowRequest) (*WindowResponse, error) {
	ctx, span := s.tracer.Start(ctx, "AcceptanceApplicationService.OpenWindow")
	defer span.End()

	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		reference = s.newID()
	}
	span.SetAttributes(attribute.String("reference", reference))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.window != nil {
		if s.window.reference == reference {
			return s.response(ctx, s.window, true), nil
		}
		err := fmt.Errorf("%w: %s", acceptor.ErrWindowOpen, s.window.reference)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	if err := s.acceptor.SetEnabled(ctx, true); err != nil {
		// 失敗した解除が残らないようにインヒビットへ戻す
		_ = s.acceptor.SetEnabled(ctx, false)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to enable coin acceptor", err, map[string]interface{}{
			"reference": reference,
		})
		return nil, err
	}

	s.window = &window{
		reference: reference,
		openedAt:  s.now(),
		coins:     map[int64]int64{},
	}
	s.logger.Info(ctx, "Payment window opened", map[string]interface{}{
		"reference": reference,
	})
	span.SetStatus(otelcodes.Ok, "payment window opened")
	return s.response(ctx, s.window, true), nil
}

// CloseWindow 支払い受付を終了し、投入口をインヒビットにする
// インヒビットに失敗しても受付は閉じる
func (s *AcceptanceApplicationService) CloseWindow(ctx context.Context) (*WindowResponse, error) {
	ctx, span := s.tracer.Start(ctx, "AcceptanceApplicationService.CloseWindow")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.window == nil {
		span.RecordError(acceptor.ErrNoWindow)
		span.SetStatus(otelcodes.Error, acceptor.ErrNoWindow.Error())
		return nil, acceptor.ErrNoWindow
	}

	if err := s.acceptor.SetEnabled(ctx, false); err != nil {
		s.logger.Error(ctx, "Failed to inhibit coin acceptor", err, map[string]interface{}{
			"reference": s.window.reference,
		})
	}

	closed := s.window
	s.window = nil
	resp := s.response(ctx, closed, false)
	resp.ClosedAt = s.now()

	span.SetAttributes(
		attribute.String("reference", closed.reference),
		attribute.Int64("total", closed.total),
	)
	s.logger.Info(ctx, "Payment window closed", map[string]interface{}{
		"reference":  closed.reference,
		"total":      closed.total,
		"unrecorded": closed.unrecorded,
	})
	span.SetStatus(otelcodes.Ok, "payment window closed")
	return resp, nil
}

// Window 現在の受付状態を返す（受付がなければ Open=false）
func (s *AcceptanceApplicationService) Window(ctx context.Context) *WindowResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.window == nil {
		status := s.acceptor.Status(ctx)
		return &WindowResponse{
			Coins:           map[int64]int64{},
			AcceptorLive:    status.Live,
			AcceptorEnabled: status.Enabled,
		}
	}
	return s.response(ctx, s.window, true)
}

// HandleCoin 投入口が認識した硬貨を受付に計上し、在庫に入れる
func (s *AcceptanceApplicationService) HandleCoin(ctx context.Context, c acceptor.Coin) {
	ctx, span := s.tracer.Start(ctx, "AcceptanceApplicationService.HandleCoin")
	defer span.End()

	value := c.Denomination.Value()
	span.SetAttributes(
		attribute.Int64("denomination", value),
		attribute.Int("pulses", c.Pulses),
	)

	s.mu.Lock()
	current := s.window
	reference := unattendedReference
	if current != nil {
		reference = current.reference
		current.coins[value]++
		current.total += value
	}
	s.mu.Unlock()

	fields := map[string]interface{}{
		"denomination": value,
		"reference":    reference,
	}
	if current == nil {
		s.logger.Warn(ctx, "Coin received outside payment window", fields)
	}

	_, err := s.depositor.Deposit(ctx, &change_dispense.DepositRequest{
		Denomination: value,
		Count:        1,
		Reference:    reference,
	})
	switch {
	case err == nil:
		s.metrics.RecordCoinAccepted(ctx, value, true)
		span.SetStatus(otelcodes.Ok, "coin deposited")
		return
	case errors.Is(err, coin.ErrInvalidDenomination):
		// ホッパーのない額面は支払いとしてだけ数える
		s.metrics.RecordCoinAccepted(ctx, value, false)
		s.logger.Info(ctx, "Accepted coin has no hopper", fields)
		return
	}

	s.metrics.RecordCoinAccepted(ctx, value, false)
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	s.logger.Error(ctx, "Failed to deposit accepted coin", err, fields)
	if current != nil {
		s.mu.Lock()
		current.unrecorded++
		s.mu.Unlock()
	}
}

func (s *AcceptanceApplicationService) response(ctx context.Context, w *window, open bool) *WindowResponse {
	status := s.acceptor.Status(ctx)
	coins := make(map[int64]int64, len(w.coins))
	for d, n := range w.coins {
		coins[d] = n
	}
	return &WindowResponse{
		Open:            open,
		Reference:       w.reference,
		OpenedAt:        w.openedAt,
		Coins:           coins,
		Total:           w.total,
		Unrecorded:      w.unrecorded,
		AcceptorLive:    status.Live,
		AcceptorEnabled: status.Enabled,
	}
}
