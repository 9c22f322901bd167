package mysql

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SettingsRepository MySQL実装のchange.SettingsRepository
type SettingsRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewSettingsRepository 新しいSettingsRepositoryを作成
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{
		db:     db,
		tracer: otel.Tracer("settings-repository"),
	}
}

// GetAll 全設定を取得
func (r *SettingsRepository) GetAll(ctx context.Context) (map[string]string, error) {
	ctx, span := r.tracer.Start(ctx, "SettingsRepository.GetAll")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "settings"),
	)

	rows, err := r.db.QueryContext(ctx, "SELECT `key`, value FROM settings")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[key] = value
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate settings: %w", err)
	}

	span.SetAttributes(attribute.Int("db.settings_count", len(settings)))
	span.SetStatus(otelcodes.Ok, "settings read")
	return settings, nil
}

// Set 設定を保存（存在すれば更新）
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	ctx, span := r.tracer.Start(ctx, "SettingsRepository.Set")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.setting_key", key),
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.table", "settings"),
	)

	query := "INSERT INTO settings (`key`, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)"
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}

	span.SetStatus(otelcodes.Ok, "setting saved")
	return nil
}
