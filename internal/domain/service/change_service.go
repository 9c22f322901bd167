package service

import (
	"context"
	"fmt"
	"sync"

	"change-server/internal/domain/change"
	"change-server/internal/domain/coin"
)

// ChangeService おつり関連のドメインサービス
// 在庫リポジトリから読み取ったスナップショットに対しておつり計算を行う
type ChangeService struct {
	inventoryRepo coin.InventoryRepository

	mu         sync.RWMutex
	calculator *change.Calculator
}

// NewChangeService 新しいChangeServiceを作成
func NewChangeService(inventoryRepo coin.InventoryRepository, policy change.Policy) (*ChangeService, error) {
	calc, err := change.NewCalculator(policy)
	if err != nil {
		return nil, err
	}
	return &ChangeService{
		inventoryRepo: inventoryRepo,
		calculator:    calc,
	}, nil
}

// Policy 適用中のポリシーを返す
func (s *ChangeService) Policy() change.Policy {
	return s.calc().Policy()
}

// UpdatePolicy ポリシーを差し替える（以降の計算に即時反映）
func (s *ChangeService) UpdatePolicy(policy change.Policy) error {
	calc, err := change.NewCalculator(policy)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.calculator = calc
	s.mu.Unlock()
	return nil
}

// GetCoinInventory 現在の在庫を取得（読み取り失敗時は推測せずにエラー）
func (s *ChangeService) GetCoinInventory(ctx context.Context) (*coin.Inventory, error) {
	inv, err := s.inventoryRepo.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", coin.ErrInventoryUnavailable, err)
	}
	return inv, nil
}

// CalculateChangeBreakdown おつりの内訳を計算
func (s *ChangeService) CalculateChangeBreakdown(ctx context.Context, amount int64) (coin.Breakdown, error) {
	inv, err := s.GetCoinInventory(ctx)
	if err != nil {
		return nil, err
	}
	return s.calc().Breakdown(inv, amount)
}

// CanDispenseChange おつりを払い出せるか判定
func (s *ChangeService) CanDispenseChange(ctx context.Context, amount int64) (change.Feasibility, error) {
	inv, err := s.GetCoinInventory(ctx)
	if err != nil {
		return change.Feasibility{Amount: amount, Reason: err}, err
	}
	return s.calc().Feasibility(inv, amount), nil
}

// FindOptimalPaymentAmounts 支払額の候補を優先度順に取得
func (s *ChangeService) FindOptimalPaymentAmounts(ctx context.Context, totalCost int64) ([]change.PaymentSuggestion, error) {
	inv, err := s.GetCoinInventory(ctx)
	if err != nil {
		return nil, err
	}
	return s.calc().Suggestions(inv, totalCost)
}

// ValidatePayment 支払額を検証
// ぴったりの支払いは在庫を読まずに受け付ける
func (s *ChangeService) ValidatePayment(ctx context.Context, totalCost, paymentAmount int64) change.Validation {
	calc := s.calc()
	if paymentAmount <= totalCost {
		return calc.Validate(coin.EmptyInventory(), totalCost, paymentAmount)
	}
	inv, err := s.GetCoinInventory(ctx)
	if err != nil {
		return change.ValidateWithoutInventory(totalCost, paymentAmount, err)
	}
	return calc.Validate(inv, totalCost, paymentAmount)
}

// FindBestPaymentAmount 受け付けられる最大の支払額を取得
func (s *ChangeService) FindBestPaymentAmount(ctx context.Context, totalCost int64) (change.PaymentSuggestion, error) {
	inv, err := s.GetCoinInventory(ctx)
	if err != nil {
		return change.PaymentSuggestion{}, err
	}
	return s.calc().BestPayment(inv, totalCost)
}

// GetChangeCapacity おつり払い出し能力を取得
func (s *ChangeService) GetChangeCapacity(ctx context.Context) (change.CapacityStatus, *coin.Inventory, error) {
	inv, err := s.GetCoinInventory(ctx)
	if err != nil {
		return change.CapacityStatus{}, nil, err
	}
	return s.calc().Status(inv), inv, nil
}

func (s *ChangeService) calc() *change.Calculator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calculator
}
