package history

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"change-server/internal/domain/dispense"
	otelinfra "change-server/internal/infrastructure/observability/otel"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

// HistoryApplicationService 台帳履歴アプリケーションサービス
type HistoryApplicationService struct {
	recordRepo dispense.RecordRepository
	logger     *otelinfra.Logger
	tracer     trace.Tracer
}

// NewHistoryApplicationService 新しいHistoryApplicationServiceを作成
func NewHistoryApplicationService(
	recordRepo dispense.RecordRepository,
	logger *otelinfra.Logger,
) *HistoryApplicationService {
	return &HistoryApplicationService{
		recordRepo: recordRepo,
		logger:     logger,
		tracer:     otel.Tracer("history-service"),
	}
}

// ListRecords 払い出し・投入・補正の記録を新しい順に取得
func (s *HistoryApplicationService) ListRecords(ctx context.Context, req *ListRecordsRequest) (*ListRecordsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "HistoryApplicationService.ListRecords")
	defer span.End()

	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	if req.Limit > maxLimit {
		req.Limit = maxLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	span.SetAttributes(
		attribute.Int("limit", req.Limit),
		attribute.Int("offset", req.Offset),
		attribute.String("entry_type", req.EntryType),
		attribute.String("status", req.Status),
	)

	var (
		entryType dispense.EntryType
		status    dispense.Status
		err       error
	)
	if req.EntryType != "" {
		if entryType, err = dispense.NewEntryType(req.EntryType); err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("%w: %v", dispense.ErrInvalidRecord, err)
		}
	}
	if req.Status != "" {
		if status, err = dispense.NewStatus(req.Status); err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("%w: %v", dispense.ErrInvalidRecord, err)
		}
	}

	records, err := s.recordRepo.FindRecent(ctx, req.Limit, req.Offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to list dispense records", err, nil)
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	// フィルタはページ内のみに適用する
	filtered := make([]*dispense.Record, 0, len(records))
	for _, rec := range records {
		if entryType != "" && rec.EntryType() != entryType {
			continue
		}
		if status != "" && rec.Status() != status {
			continue
		}
		filtered = append(filtered, rec)
	}

	span.SetAttributes(attribute.Int("records_count", len(filtered)))
	span.SetStatus(otelcodes.Ok, "records listed")
	return &ListRecordsResponse{
		Records: filtered,
		Limit:   req.Limit,
		Offset:  req.Offset,
	}, nil
}

// GetRecord 記録IDで台帳記録を取得
func (s *HistoryApplicationService) GetRecord(ctx context.Context, req *GetRecordRequest) (*dispense.Record, error) {
	ctx, span := s.tracer.Start(ctx, "HistoryApplicationService.GetRecord")
	defer span.End()

	span.SetAttributes(attribute.String("record_id", req.RecordID))

	rec, err := s.recordRepo.FindByRecordID(ctx, req.RecordID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		if !errors.Is(err, dispense.ErrRecordNotFound) {
			s.logger.Error(ctx, "Failed to get dispense record", err, map[string]interface{}{
				"record_id": req.RecordID,
			})
		}
		return nil, err
	}

	span.SetStatus(otelcodes.Ok, "record found")
	return rec, nil
}
