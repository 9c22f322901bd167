package change

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"change-server/internal/domain/coin"
)

const (
	// SettingMaxChangeLimit おつり上限額の設定キー
	SettingMaxChangeLimit = "max_change_limit"
	// SettingReservePrefix 予備枚数の設定キー接頭辞（min_coin_threshold_<額面>）
	SettingReservePrefix = "min_coin_threshold_"
)

// SettingsRepository 設定値の永続化インターフェース
type SettingsRepository interface {
	GetAll(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string) error
}

// ReserveKey 額面に対応する予備枚数の設定キーを返す
func ReserveKey(d coin.Denomination) string {
	return SettingReservePrefix + strconv.FormatInt(d.Value(), 10)
}

// ApplySettings 保存済みの設定値でポリシーを上書きしたコピーを返す
// 未知のキーは無視する
func ApplySettings(p Policy, settings map[string]string) (Policy, error) {
	out := p.clone()
	for key, raw := range settings {
		switch {
		case key == SettingMaxChangeLimit:
			v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return p, fmt.Errorf("%w: %s=%q", ErrInvalidPolicy, key, raw)
			}
			out.MaxChangeLimit = v
		case strings.HasPrefix(key, SettingReservePrefix):
			d, err := coin.ParseDenomination(strings.TrimPrefix(key, SettingReservePrefix))
			if err != nil || !out.Denominations.Contains(d) {
				continue
			}
			v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return p, fmt.Errorf("%w: %s=%q", ErrInvalidPolicy, key, raw)
			}
			out.ReserveThresholds[d] = v
		}
	}
	if err := out.Validate(); err != nil {
		return p, err
	}
	return out, nil
}
