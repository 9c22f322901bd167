package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"change-server/internal/domain/coin"
)

const cashTypeCoin = "coin"

// InventoryRepository MySQL実装のcoin.InventoryRepository
type InventoryRepository struct {
	db     *DB
	tm     *TransactionManager
	tracer trace.Tracer
}

// NewInventoryRepository 新しいInventoryRepositoryを作成
func NewInventoryRepository(db *DB) *InventoryRepository {
	return &InventoryRepository{
		db:     db,
		tm:     NewTransactionManager(db),
		tracer: otel.Tracer("inventory-repository"),
	}
}

// Read 硬貨在庫を取得
func (r *InventoryRepository) Read(ctx context.Context) (*coin.Inventory, error) {
	ctx, span := r.tracer.Start(ctx, "InventoryRepository.Read")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "cash_inventory"),
	)

	query := `
		SELECT denomination, count
		FROM cash_inventory
		WHERE type = ?
	`

	rows, err := r.db.QueryContext(ctx, query, cashTypeCoin)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	defer rows.Close()

	counts := make(map[coin.Denomination]int64)
	for rows.Next() {
		var denomination, count int64
		if err := rows.Scan(&denomination, &count); err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan inventory: %w", err)
		}
		counts[coin.Denomination(denomination)] = count
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate inventory: %w", err)
	}

	inv, err := coin.NewInventory(counts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to reconstruct inventory: %w", err)
	}

	span.SetAttributes(attribute.Int64("db.total_value", inv.TotalValue()))
	span.SetStatus(otelcodes.Ok, "inventory read")
	return inv, nil
}

// Write 全額面の枚数を1トランザクションで保存
func (r *InventoryRepository) Write(ctx context.Context, inv *coin.Inventory) error {
	ctx, span := r.tracer.Start(ctx, "InventoryRepository.Write")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.table", "cash_inventory"),
		attribute.Int64("db.total_value", inv.TotalValue()),
	)

	counts := inv.Counts()
	denominations := make([]coin.Denomination, 0, len(counts))
	for d := range counts {
		denominations = append(denominations, d)
	}
	sort.Slice(denominations, func(i, j int) bool { return denominations[i] < denominations[j] })

	query := `
		INSERT INTO cash_inventory (denomination, type, count)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			count = VALUES(count),
			last_updated = CURRENT_TIMESTAMP
	`

	err := r.tm.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, d := range denominations {
			if _, err := tx.ExecContext(ctx, query, d.Value(), cashTypeCoin, counts[d]); err != nil {
				return fmt.Errorf("failed to write %s: %w", d, err)
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to write inventory: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "inventory written")
	return nil
}
