package settings

// UpdateSettingsRequest 設定更新リクエスト（nil/未指定の項目は変更しない）
type UpdateSettingsRequest struct {
	MaxChangeLimit *int64
	Reserves       map[int64]int64 // 額面 => 予備枚数
}

// SettingsResponse 適用中の設定
type SettingsResponse struct {
	MaxChangeLimit int64
	Reserves       map[int64]int64
}
