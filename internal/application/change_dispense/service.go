package change_dispense

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"change-server/internal/domain/coin"
	"change-server/internal/domain/dispense"
	"change-server/internal/domain/hopper"
	"change-server/internal/domain/service"
	otelinfra "change-server/internal/infrastructure/observability/otel"
)

// Hardware 払い出しに使うハードウェア接続
type Hardware interface {
	EnsureLive(ctx context.Context) (*hopper.Dispenser, error)
	Reconnect(ctx context.Context) (*hopper.Dispenser, error)
	Status(ctx context.Context) hopper.ConnectionStatus
}

// Options 払い出しのタイムアウト設定
type Options struct {
	HopperTimeout      time.Duration
	TransactionTimeout time.Duration
}

// DispenseApplicationService おつり払い出しと在庫台帳のアプリケーションサービス
// 在庫を変更する操作はすべて mu で直列化する
type DispenseApplicationService struct {
	changeService *service.ChangeService
	inventoryRepo coin.InventoryRepository
	recordRepo    dispense.RecordRepository
	hardware      Hardware
	logger        *otelinfra.Logger
	metrics       *otelinfra.Metrics
	tracer        trace.Tracer
	opts          Options
	newID         func() string

	mu sync.Mutex
}

// NewDispenseApplicationService 新しいDispenseApplicationServiceを作成
func NewDispenseApplicationService(
	changeService *service.ChangeService,
	inventoryRepo coin.InventoryRepository,
	recordRepo dispense.RecordRepository,
	hardware Hardware,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	opts Options,
) *DispenseApplicationService {
	return &DispenseApplicationService{
		changeService: changeService,
		inventoryRepo: inventoryRepo,
		recordRepo:    recordRepo,
		hardware:      hardware,
		logger:        logger,
		metrics:       metrics,
		tracer:        otel.Tracer("dispense-service"),
		opts:          opts,
		newID:         uuid.NewString,
	}
}

// DispenseChange おつりを払い出す（内訳計算 → 払い出し → 確定枚数で在庫を減らす）
// 業務ルールによる拒否はハードウェアに触れる前にエラーで返す
// ジャムなどの部分的な払い出しはエラーではなく Success=false のレスポンスで返す
func (s *DispenseApplicationService) DispenseChange(ctx context.Context, req *DispenseChangeRequest) (*DispenseChangeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "DispenseApplicationService.DispenseChange")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("amount", req.Amount),
		attribute.String("reference", req.Reference),
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	feasibility, err := s.changeService.CanDispenseChange(ctx, req.Amount)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to check change feasibility", err, map[string]interface{}{
			"amount": req.Amount,
		})
		return nil, err
	}
	if !feasibility.Feasible {
		s.metrics.RecordDispense(ctx, "rejected")
		span.RecordError(feasibility.Reason)
		span.SetStatus(otelcodes.Error, feasibility.Reason.Error())
		s.logger.Info(ctx, "Change dispense rejected", map[string]interface{}{
			"amount": req.Amount,
			"reason": feasibility.Reason.Error(),
		})
		return nil, feasibility.Reason
	}

	if feasibility.Breakdown.IsEmpty() {
		span.SetStatus(otelcodes.Ok, "no change due")
		return &DispenseChangeResponse{
			Success:          true,
			Status:           dispense.StatusCompleted.String(),
			Requested:        map[int64]int64{},
			Dispensed:        map[int64]int64{},
			InventoryUpdated: true,
			Message:          "No change due",
		}, nil
	}

	// 硬貨が出た後は呼び出し元のキャンセルに関係なく台帳へ記録する
	ledgerCtx := context.WithoutCancel(ctx)

	dispenser, err := s.hardware.EnsureLive(ctx)
	if err != nil {
		s.metrics.RecordDispense(ctx, "hardware_unavailable")
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Hardware unavailable for dispense", err, map[string]interface{}{
			"amount": req.Amount,
		})
		s.saveRecord(ledgerCtx, dispense.EntryTypeDispense, req.Reference, feasibility.Breakdown, coin.Breakdown{}, dispense.StatusFailed, err.Error())
		return nil, err
	}

	dctx := ctx
	if s.opts.TransactionTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, s.opts.TransactionTimeout)
		defer cancel()
	}
	outcome := dispenser.Dispense(dctx, feasibility.Breakdown, s.opts.HopperTimeout)

	inventoryErr := s.withdraw(ledgerCtx, outcome.Dispensed)
	if inventoryErr != nil {
		span.RecordError(inventoryErr)
		s.logger.Error(ctx, "Failed to record dispensed coins in inventory", inventoryErr, map[string]interface{}{
			"dispensed": outcome.Dispensed.ToValueMap(),
		})
	}

	status := dispense.StatusFor(outcome.Success(), outcome.Dispensed.Coins())
	failureReason := ""
	if err := outcome.Err(); err != nil {
		failureReason = err.Error()
	}
	recordID := s.saveRecord(ledgerCtx, dispense.EntryTypeDispense, req.Reference, outcome.Requested, outcome.Dispensed, status, failureReason)

	s.recordOutcomeMetrics(ctx, outcome, status)

	resp := newDispenseResponse(recordID, outcome, status)
	resp.InventoryUpdated = inventoryErr == nil

	span.SetAttributes(
		attribute.String("record_id", recordID),
		attribute.String("status", status.String()),
		attribute.Int64("amount_dispensed", outcome.DispensedAmount()),
	)
	if outcome.Success() {
		span.SetStatus(otelcodes.Ok, "change dispensed")
		s.logger.Info(ctx, "Change dispensed", map[string]interface{}{
			"record_id": recordID,
			"amount":    req.Amount,
			"dispensed": outcome.Dispensed.ToValueMap(),
		})
	} else {
		span.RecordError(outcome.Err())
		span.SetStatus(otelcodes.Error, "partial dispense")
		s.logger.Warn(ctx, "Change dispense incomplete", map[string]interface{}{
			"record_id": recordID,
			"amount":    req.Amount,
			"requested": outcome.Requested.ToValueMap(),
			"dispensed": outcome.Dispensed.ToValueMap(),
			"shortfall": outcome.Shortfall(),
			"error":     failureReason,
		})
	}
	return resp, nil
}

// Reconnect ハードウェア接続を開き直す
func (s *DispenseApplicationService) Reconnect(ctx context.Context) (*HardwareStatusResponse, error) {
	ctx, span := s.tracer.Start(ctx, "DispenseApplicationService.Reconnect")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.hardware.Reconnect(ctx)
	s.metrics.RecordReconnect(ctx, err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Hardware reconnect failed", err, nil)
		return nil, err
	}

	status := s.hardware.Status(ctx)
	span.SetAttributes(attribute.Int64("generation", int64(status.Generation)))
	span.SetStatus(otelcodes.Ok, "hardware reconnected")
	return toHardwareStatus(status), nil
}

// HardwareStatus ハードウェア接続状態を取得
func (s *DispenseApplicationService) HardwareStatus(ctx context.Context) *HardwareStatusResponse {
	return toHardwareStatus(s.hardware.Status(ctx))
}

// withdraw 確定した枚数だけ在庫を減らす
func (s *DispenseApplicationService) withdraw(ctx context.Context, dispensed coin.Breakdown) error {
	if dispensed.IsEmpty() {
		return nil
	}
	inv, err := s.changeService.GetCoinInventory(ctx)
	if err != nil {
		return err
	}
	if err := inv.Withdraw(dispensed); err != nil {
		return err
	}
	if err := s.inventoryRepo.Write(ctx, inv); err != nil {
		return fmt.Errorf("%w: %v", coin.ErrInventoryUnavailable, err)
	}
	s.metrics.RecordInventory(ctx, valueMap(inv.Counts()))
	return nil
}

// saveRecord 台帳記録を保存し、記録IDを返す（保存失敗はログのみ）
func (s *DispenseApplicationService) saveRecord(
	ctx context.Context,
	entryType dispense.EntryType,
	reference string,
	requested, applied coin.Breakdown,
	status dispense.Status,
	failureReason string,
) string {
	recordID := s.newID()
	rec, err := dispense.NewRecord(recordID, entryType, reference, requested, applied, status, failureReason)
	if err == nil {
		err = s.recordRepo.Save(ctx, rec)
	}
	if err != nil {
		s.logger.Error(ctx, "Failed to save ledger record", err, map[string]interface{}{
			"record_id":  recordID,
			"entry_type": entryType.String(),
			"status":     status.String(),
		})
	}
	return recordID
}

func (s *DispenseApplicationService) recordOutcomeMetrics(ctx context.Context, outcome *hopper.Outcome, status dispense.Status) {
	s.metrics.RecordDispense(ctx, status.String())
	for d, n := range outcome.Dispensed {
		if n > 0 {
			s.metrics.RecordCoinsDispensed(ctx, d.Value(), n)
		}
	}
	for _, r := range outcome.Hoppers {
		if errors.Is(r.Err, hopper.ErrJam) {
			s.metrics.RecordJam(ctx, r.HopperID, r.Denomination.Value())
		}
		pulses := map[hopper.Classification]int64{
			hopper.ClassValid:      r.Stats.Confirmed,
			hopper.ClassFalseShort: r.Stats.FalseShort,
			hopper.ClassFalseLong:  r.Stats.FalseLong,
			hopper.ClassStuckOpen:  r.Stats.StuckOpen,
			hopper.ClassIgnored:    r.Stats.Ignored,
		}
		for class, n := range pulses {
			if n > 0 {
				s.metrics.RecordSensorPulses(ctx, r.HopperID, class.String(), n)
			}
		}
	}
}

func newDispenseResponse(recordID string, outcome *hopper.Outcome, status dispense.Status) *DispenseChangeResponse {
	resp := &DispenseChangeResponse{
		RecordID:        recordID,
		Success:         outcome.Success(),
		Status:          status.String(),
		AmountRequested: outcome.RequestedAmount(),
		AmountDispensed: outcome.DispensedAmount(),
		Requested:       outcome.Requested.ToValueMap(),
		Dispensed:       outcome.Dispensed.ToValueMap(),
		Failures:        make([]HopperFailure, 0, len(outcome.Failures)),
	}
	for _, f := range outcome.Failures {
		resp.Failures = append(resp.Failures, HopperFailure{
			Denomination: f.Denomination.Value(),
			Requested:    f.Requested,
			Confirmed:    f.Confirmed,
			Reason:       failureCode(f.Err),
			Message:      f.Err.Error(),
		})
	}
	if resp.Success {
		resp.Message = fmt.Sprintf("Dispensed ₱%d", resp.AmountDispensed)
	} else {
		resp.Message = fmt.Sprintf("Dispensed ₱%d of ₱%d", resp.AmountDispensed, resp.AmountRequested)
	}
	return resp
}

func failureCode(err error) string {
	switch {
	case errors.Is(err, hopper.ErrJam):
		return "jam"
	case errors.Is(err, hopper.ErrDispenseAborted):
		return "aborted"
	case errors.Is(err, hopper.ErrHopperNotConfigured):
		return "hopper_not_configured"
	case errors.Is(err, hopper.ErrHardwareUnavailable):
		return "hardware_unavailable"
	default:
		return "unknown"
	}
}

func toHardwareStatus(st hopper.ConnectionStatus) *HardwareStatusResponse {
	return &HardwareStatusResponse{
		Live:       st.Live,
		Generation: st.Generation,
		Hoppers:    st.Hoppers,
	}
}

func valueMap(m map[coin.Denomination]int64) map[int64]int64 {
	out := make(map[int64]int64, len(m))
	for d, n := range m {
		out[d.Value()] = n
	}
	return out
}
