package handler

import (
	"time"

	"change-server/internal/domain/dispense"
)

// RecordItem 台帳記録
// @Description 払い出し・補充・補正の台帳記録
type RecordItem struct {
	RecordID        string          `json:"record_id" example:"9b2f6c1e-8f7d-4c1a-9d55-2b1d9f0e7a10"`
	EntryType       string          `json:"entry_type" example:"dispense"`
	Reference       string          `json:"reference,omitempty" example:"order-20240101-0001"`
	Requested       map[int64]int64 `json:"requested"`
	Applied         map[int64]int64 `json:"applied"`
	AmountRequested int64           `json:"amount_requested" example:"12"`
	AmountApplied   int64           `json:"amount_applied" example:"12"`
	Status          string          `json:"status" example:"completed"`
	FailureReason   string          `json:"failure_reason,omitempty" example:"hopper A jammed"`
	CreatedAt       string          `json:"created_at" example:"2024-01-01T12:00:00Z"`
}

// RecordListResponse 台帳記録一覧レスポンス
// @Description 台帳記録一覧レスポンス
type RecordListResponse struct {
	Records []RecordItem `json:"records"`
	Limit   int          `json:"limit" example:"50"`
	Offset  int          `json:"offset" example:"0"`
}

func toRecordItem(rec *dispense.Record) RecordItem {
	return RecordItem{
		RecordID:        rec.RecordID(),
		EntryType:       rec.EntryType().String(),
		Reference:       rec.Reference(),
		Requested:       rec.Requested().ToValueMap(),
		Applied:         rec.Applied().ToValueMap(),
		AmountRequested: rec.AmountRequested(),
		AmountApplied:   rec.AmountApplied(),
		Status:          rec.Status().String(),
		FailureReason:   rec.FailureReason(),
		CreatedAt:       rec.CreatedAt().UTC().Format(time.RFC3339),
	}
}
