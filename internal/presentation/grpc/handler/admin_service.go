package handler

import (
	"context"

	dispenseapp "change-server/internal/application/change_dispense"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// AdminServiceName 管理用サービスの完全修飾名
const AdminServiceName = "kiosk.v1.AdminService"

// AdminServiceServer 管理用gRPCサービス
type AdminServiceServer interface {
	GetInventory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Deposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Adjust(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetHardwareStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Reconnect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// AdminServiceDesc kiosk.v1.AdminServiceのサービス定義
var AdminServiceDesc = grpc.ServiceDesc{
	ServiceName: AdminServiceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetInventory", Handler: unaryMethod("/"+AdminServiceName+"/GetInventory", AdminServiceServer.GetInventory)},
		{MethodName: "Deposit", Handler: unaryMethod("/"+AdminServiceName+"/Deposit", AdminServiceServer.Deposit)},
		{MethodName: "Adjust", Handler: unaryMethod("/"+AdminServiceName+"/Adjust", AdminServiceServer.Adjust)},
		{MethodName: "GetHardwareStatus", Handler: unaryMethod("/"+AdminServiceName+"/GetHardwareStatus", AdminServiceServer.GetHardwareStatus)},
		{MethodName: "Reconnect", Handler: unaryMethod("/"+AdminServiceName+"/Reconnect", AdminServiceServer.Reconnect)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kiosk/v1/admin.proto",
}

// RegisterAdminServiceServer サービスを登録
func RegisterAdminServiceServer(s grpc.ServiceRegistrar, srv AdminServiceServer) {
	s.RegisterService(&AdminServiceDesc, srv)
}

// AdminHandler AdminServiceの実装
type AdminHandler struct {
	dispenseService *dispenseapp.DispenseApplicationService
}

// NewAdminHandler 新しいAdminHandlerを作成
func NewAdminHandler(dispenseService *dispenseapp.DispenseApplicationService) *AdminHandler {
	return &AdminHandler{dispenseService: dispenseService}
}

var _ AdminServiceServer = (*AdminHandler)(nil)

// GetInventory 在庫を返す
func (h *AdminHandler) GetInventory(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	resp, err := h.dispenseService.GetInventory(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(inventoryValue(resp))
}

// Deposit 硬貨を補充する
// リクエスト: {"denomination": number, "count": number, "reference": string}
func (h *AdminHandler) Deposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	denomination, err := int64Field(req, "denomination")
	if err != nil {
		return nil, err
	}
	count, err := int64Field(req, "count")
	if err != nil {
		return nil, err
	}
	reference, err := stringField(req, "reference")
	if err != nil {
		return nil, err
	}

	resp, err := h.dispenseService.Deposit(ctx, &dispenseapp.DepositRequest{
		Denomination: denomination,
		Count:        count,
		Reference:    reference,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(ledgerValue(resp))
}

// Adjust 在庫を補正する
// リクエスト: {"denomination": number, "delta": number, "reason": string}
func (h *AdminHandler) Adjust(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	denomination, err := int64Field(req, "denomination")
	if err != nil {
		return nil, err
	}
	delta, err := int64Field(req, "delta")
	if err != nil {
		return nil, err
	}
	reason, err := stringField(req, "reason")
	if err != nil {
		return nil, err
	}

	resp, err := h.dispenseService.Adjust(ctx, &dispenseapp.AdjustRequest{
		Denomination: denomination,
		Delta:        delta,
		Reason:       reason,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(ledgerValue(resp))
}

// GetHardwareStatus ハードウェア接続状態を返す
func (h *AdminHandler) GetHardwareStatus(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return newStruct(hardwareValue(h.dispenseService.HardwareStatus(ctx)))
}

// Reconnect ハードウェアに再接続する
func (h *AdminHandler) Reconnect(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	resp, err := h.dispenseService.Reconnect(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(hardwareValue(resp))
}

func inventoryValue(inv *dispenseapp.InventoryResponse) map[string]interface{} {
	return map[string]interface{}{
		"counts":      breakdownValue(inv.Counts),
		"total_value": inv.TotalValue,
	}
}

func ledgerValue(resp *dispenseapp.LedgerResponse) map[string]interface{} {
	return map[string]interface{}{
		"record_id": resp.RecordID,
		"inventory": inventoryValue(&resp.Inventory),
	}
}

func hardwareValue(st *dispenseapp.HardwareStatusResponse) map[string]interface{} {
	return map[string]interface{}{
		"live":       st.Live,
		"generation": int64(st.Generation),
		"hoppers":    st.Hoppers,
	}
}
