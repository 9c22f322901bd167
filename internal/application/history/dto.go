package history

import "change-server/internal/domain/dispense"

// ListRecordsRequest 台帳記録一覧リクエスト
type ListRecordsRequest struct {
	Limit     int
	Offset    int
	EntryType string // optional: "dispense", "deposit", "adjustment"
	Status    string // optional: "completed", "partial", "failed"
}

// ListRecordsResponse 台帳記録一覧レスポンス
type ListRecordsResponse struct {
	Records []*dispense.Record
	Limit   int
	Offset  int
}

// GetRecordRequest 台帳記録取得リクエスト
type GetRecordRequest struct {
	RecordID string
}
