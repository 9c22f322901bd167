package coin

import (
	"context"
)

// InventoryRepository 硬貨在庫リポジトリインターフェース
type InventoryRepository interface {
	// Read 現在の在庫を取得
	Read(ctx context.Context) (*Inventory, error)

	// Write 在庫を保存（全額面を1トランザクションで書き込む）
	Write(ctx context.Context, inventory *Inventory) error
}
