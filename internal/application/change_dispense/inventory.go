package change_dispense

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"

	"change-server/internal/domain/coin"
	"change-server/internal/domain/dispense"
)

// GetInventory 現在の在庫を取得
func (s *DispenseApplicationService) GetInventory(ctx context.Context) (*InventoryResponse, error) {
	ctx, span := s.tracer.Start(ctx, "DispenseApplicationService.GetInventory")
	defer span.End()

	inv, err := s.changeService.GetCoinInventory(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	counts := valueMap(inv.Counts())
	s.metrics.RecordInventory(ctx, counts)
	span.SetStatus(otelcodes.Ok, "inventory read")
	return &InventoryResponse{Counts: counts, TotalValue: inv.TotalValue()}, nil
}

// Deposit 確認済みの硬貨を在庫に加える
func (s *DispenseApplicationService) Deposit(ctx context.Context, req *DepositRequest) (*LedgerResponse, error) {
	ctx, span := s.tracer.Start(ctx, "DispenseApplicationService.Deposit")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("denomination", req.Denomination),
		attribute.Int64("count", req.Count),
	)

	if req.Count <= 0 {
		err := fmt.Errorf("%w: deposit %d", coin.ErrNegativeCount, req.Count)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	resp, err := s.applyLedger(ctx, req.Denomination, dispense.EntryTypeDeposit, req.Reference, func(inv *coin.Inventory, d coin.Denomination) error {
		return inv.Deposit(d, req.Count)
	}, req.Count)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(otelcodes.Ok, "coins deposited")
	return resp, nil
}

// Adjust 管理者による在庫補正（理由必須、結果は0枚以上）
func (s *DispenseApplicationService) Adjust(ctx context.Context, req *AdjustRequest) (*LedgerResponse, error) {
	ctx, span := s.tracer.Start(ctx, "DispenseApplicationService.Adjust")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("denomination", req.Denomination),
		attribute.Int64("delta", req.Delta),
	)

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		span.RecordError(dispense.ErrReasonRequired)
		span.SetStatus(otelcodes.Error, dispense.ErrReasonRequired.Error())
		return nil, dispense.ErrReasonRequired
	}
	if req.Delta == 0 {
		err := fmt.Errorf("%w: adjustment delta must not be zero", dispense.ErrInvalidRecord)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	resp, err := s.applyLedger(ctx, req.Denomination, dispense.EntryTypeAdjustment, reason, func(inv *coin.Inventory, d coin.Denomination) error {
		return inv.Adjust(d, req.Delta)
	}, req.Delta)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	s.logger.Warn(ctx, "Inventory adjusted", map[string]interface{}{
		"record_id":    resp.RecordID,
		"denomination": req.Denomination,
		"delta":        req.Delta,
		"reason":       reason,
	})
	span.SetStatus(otelcodes.Ok, "inventory adjusted")
	return resp, nil
}

// applyLedger 払い出しと同じロックの下で在庫を変更し、台帳に記録する
func (s *DispenseApplicationService) applyLedger(
	ctx context.Context,
	denomination int64,
	entryType dispense.EntryType,
	reference string,
	apply func(*coin.Inventory, coin.Denomination) error,
	count int64,
) (*LedgerResponse, error) {
	d, err := coin.NewDenomination(denomination)
	if err != nil {
		return nil, err
	}
	if !s.changeService.Policy().Denominations.Contains(d) {
		return nil, fmt.Errorf("%w: %s is not configured", coin.ErrInvalidDenomination, d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.changeService.GetCoinInventory(ctx)
	if err != nil {
		return nil, err
	}
	if err := apply(inv, d); err != nil {
		return nil, err
	}
	if err := s.inventoryRepo.Write(ctx, inv); err != nil {
		return nil, fmt.Errorf("%w: %v", coin.ErrInventoryUnavailable, err)
	}

	change := coin.Breakdown{d: count}
	recordID := s.saveRecord(context.WithoutCancel(ctx), entryType, reference, change, change, dispense.StatusCompleted, "")

	counts := valueMap(inv.Counts())
	s.metrics.RecordInventory(ctx, counts)
	return &LedgerResponse{
		RecordID:  recordID,
		Inventory: InventoryResponse{Counts: counts, TotalValue: inv.TotalValue()},
	}, nil
}
