package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"change-server/internal/domain/coin"
	"change-server/internal/domain/dispense"
)

// DispenseRecordRepository MySQL実装のdispense.RecordRepository
type DispenseRecordRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewDispenseRecordRepository 新しいDispenseRecordRepositoryを作成
func NewDispenseRecordRepository(db *DB) *DispenseRecordRepository {
	return &DispenseRecordRepository{
		db:     db,
		tracer: otel.Tracer("dispense-record-repository"),
	}
}

const recordColumns = `record_id, entry_type, reference, requested, applied, status, failure_reason, created_at`

// Save 記録を保存
func (r *DispenseRecordRepository) Save(ctx context.Context, rec *dispense.Record) error {
	ctx, span := r.tracer.Start(ctx, "DispenseRecordRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.record_id", rec.RecordID()),
		attribute.String("db.entry_type", rec.EntryType().String()),
		attribute.String("db.status", rec.Status().String()),
		attribute.Int64("db.amount_applied", rec.AmountApplied()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "change_dispenses"),
	)

	requested, err := json.Marshal(rec.Requested().ToValueMap())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to marshal requested breakdown: %w", err)
	}
	applied, err := json.Marshal(rec.Applied().ToValueMap())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to marshal applied breakdown: %w", err)
	}

	var failureReason interface{}
	if rec.FailureReason() != "" {
		failureReason = rec.FailureReason()
	}

	query := `INSERT INTO change_dispenses (` + recordColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		rec.RecordID(),
		rec.EntryType().String(),
		rec.Reference(),
		string(requested),
		string(applied),
		rec.Status().String(),
		failureReason,
		rec.CreatedAt(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save dispense record: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "dispense record saved")
	return nil
}

// FindByRecordID 記録IDで記録を取得
func (r *DispenseRecordRepository) FindByRecordID(ctx context.Context, recordID string) (*dispense.Record, error) {
	ctx, span := r.tracer.Start(ctx, "DispenseRecordRepository.FindByRecordID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.record_id", recordID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "change_dispenses"),
	)

	query := `SELECT ` + recordColumns + ` FROM change_dispenses WHERE record_id = ?`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, recordID))
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(otelcodes.Ok, "dispense record not found")
		return nil, dispense.ErrRecordNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find dispense record: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "dispense record found")
	return rec, nil
}

// FindRecent 新しい順に記録一覧を取得
func (r *DispenseRecordRepository) FindRecent(ctx context.Context, limit, offset int) ([]*dispense.Record, error) {
	ctx, span := r.tracer.Start(ctx, "DispenseRecordRepository.FindRecent")
	defer span.End()

	span.SetAttributes(
		attribute.Int("db.limit", limit),
		attribute.Int("db.offset", offset),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "change_dispenses"),
	)

	query := `SELECT ` + recordColumns + ` FROM change_dispenses ORDER BY created_at DESC, record_id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to list dispense records: %w", err)
	}
	defer rows.Close()

	records := make([]*dispense.Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan dispense record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate dispense records: %w", err)
	}

	span.SetAttributes(attribute.Int("db.records_count", len(records)))
	span.SetStatus(otelcodes.Ok, "dispense records listed")
	return records, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*dispense.Record, error) {
	var (
		recordID, entryType, reference, status string
		requestedJSON, appliedJSON             []byte
		failureReason                          sql.NullString
		createdAt                              time.Time
	)
	if err := row.Scan(&recordID, &entryType, &reference, &requestedJSON, &appliedJSON, &status, &failureReason, &createdAt); err != nil {
		return nil, err
	}

	et, err := dispense.NewEntryType(entryType)
	if err != nil {
		return nil, err
	}
	st, err := dispense.NewStatus(status)
	if err != nil {
		return nil, err
	}
	requested, err := unmarshalBreakdown(requestedJSON)
	if err != nil {
		return nil, fmt.Errorf("invalid requested breakdown: %w", err)
	}
	applied, err := unmarshalBreakdown(appliedJSON)
	if err != nil {
		return nil, fmt.Errorf("invalid applied breakdown: %w", err)
	}

	return dispense.NewRecordAt(recordID, et, reference, requested, applied, st, failureReason.String, createdAt)
}

func unmarshalBreakdown(data []byte) (coin.Breakdown, error) {
	var values map[int64]int64
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	b := make(coin.Breakdown, len(values))
	for v, n := range values {
		d, err := coin.NewDenomination(v)
		if err != nil {
			return nil, err
		}
		b[d] = n
	}
	return b, nil
}
