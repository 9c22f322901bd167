package dispense

import (
	"context"
)

// RecordRepository 台帳記録リポジトリインターフェース
type RecordRepository interface {
	// Save 記録を保存
	Save(ctx context.Context, record *Record) error

	// FindByRecordID 記録IDで記録を取得
	FindByRecordID(ctx context.Context, recordID string) (*Record, error)

	// FindRecent 新しい順に記録一覧を取得（ページネーション対応）
	FindRecent(ctx context.Context, limit, offset int) ([]*Record, error)
}
