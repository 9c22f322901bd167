package dispense

import (
	"errors"
	"regexp"
	"time"

	"change-server/internal/domain/coin"
)

var (
	// ErrInvalidRecordID 記録IDが無効
	ErrInvalidRecordID = errors.New("invalid record id")
	// ErrInvalidReference 参照IDが無効
	ErrInvalidReference = errors.New("invalid reference")
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,64}$`)

// Record 在庫台帳の記録エンティティ（払い出し・投入・補正）
type Record struct {
	recordID      string
	entryType     EntryType
	reference     string // キオスク側の取引IDまたは補正理由
	requested     coin.Breakdown
	applied       coin.Breakdown // 実際に在庫へ反映された枚数
	status        Status
	failureReason string
	createdAt     time.Time
}

// NewRecord 新しいRecordエンティティを作成
func NewRecord(
	recordID string,
	entryType EntryType,
	reference string,
	requested coin.Breakdown,
	applied coin.Breakdown,
	status Status,
	failureReason string,
) (*Record, error) {
	return NewRecordAt(recordID, entryType, reference, requested, applied, status, failureReason, time.Now())
}

// NewRecordAt 作成日時を指定してRecordエンティティを作成（DBからの再構築用）
func NewRecordAt(
	recordID string,
	entryType EntryType,
	reference string,
	requested coin.Breakdown,
	applied coin.Breakdown,
	status Status,
	failureReason string,
	createdAt time.Time,
) (*Record, error) {
	if !idRegex.MatchString(recordID) {
		return nil, ErrInvalidRecordID
	}
	if len(reference) > 255 {
		return nil, ErrInvalidReference
	}
	if !entryType.Valid() || !status.Valid() {
		return nil, ErrInvalidRecord
	}
	if requested == nil {
		requested = coin.Breakdown{}
	}
	if applied == nil {
		applied = coin.Breakdown{}
	}

	return &Record{
		recordID:      recordID,
		entryType:     entryType,
		reference:     reference,
		requested:     requested.Clone(),
		applied:       applied.Clone(),
		status:        status,
		failureReason: failureReason,
		createdAt:     createdAt,
	}, nil
}

// RecordID 記録IDを返す
func (r *Record) RecordID() string {
	return r.recordID
}

// EntryType 記録タイプを返す
func (r *Record) EntryType() EntryType {
	return r.entryType
}

// Reference 参照IDを返す
func (r *Record) Reference() string {
	return r.reference
}

// Requested 要求された内訳を返す
func (r *Record) Requested() coin.Breakdown {
	return r.requested.Clone()
}

// Applied 在庫へ反映された内訳を返す
func (r *Record) Applied() coin.Breakdown {
	return r.applied.Clone()
}

// AmountRequested 要求金額を返す
func (r *Record) AmountRequested() int64 {
	return r.requested.Total()
}

// AmountApplied 反映金額を返す
func (r *Record) AmountApplied() int64 {
	return r.applied.Total()
}

// Status ステータスを返す
func (r *Record) Status() Status {
	return r.status
}

// FailureReason 失敗理由を返す
func (r *Record) FailureReason() string {
	return r.failureReason
}

// CreatedAt 作成日時を返す
func (r *Record) CreatedAt() time.Time {
	return r.createdAt
}

// MustNewRecord テスト用ヘルパー: NewRecordを呼び出し、エラーが発生した場合はpanicする
func MustNewRecord(
	recordID string,
	entryType EntryType,
	reference string,
	requested coin.Breakdown,
	applied coin.Breakdown,
	status Status,
	failureReason string,
) *Record {
	r, err := NewRecord(recordID, entryType, reference, requested, applied, status, failureReason)
	if err != nil {
		panic(err)
	}
	return r
}
