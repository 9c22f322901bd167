package handler

import (
	"context"

	dispenseapp "change-server/internal/application/change_dispense"
	paymentapp "change-server/internal/application/payment"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ChangeServiceName キオスク向けサービスの完全修飾名
const ChangeServiceName = "kiosk.v1.ChangeService"

// ChangeServiceServer キオスク向けgRPCサービス
type ChangeServiceServer interface {
	SuggestPayments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ValidatePayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	BestPayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetChangeStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DispenseChange(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ChangeServiceDesc kiosk.v1.ChangeServiceのサービス定義
var ChangeServiceDesc = grpc.ServiceDesc{
	ServiceName: ChangeServiceName,
	HandlerType: (*ChangeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SuggestPayments", Handler: unaryMethod("/"+ChangeServiceName+"/SuggestPayments", ChangeServiceServer.SuggestPayments)},
		{MethodName: "ValidatePayment", Handler: unaryMethod("/"+ChangeServiceName+"/ValidatePayment", ChangeServiceServer.ValidatePayment)},
		{MethodName: "BestPayment", Handler: unaryMethod("/"+ChangeServiceName+"/BestPayment", ChangeServiceServer.BestPayment)},
		{MethodName: "GetChangeStatus", Handler: unaryMethod("/"+ChangeServiceName+"/GetChangeStatus", ChangeServiceServer.GetChangeStatus)},
		{MethodName: "DispenseChange", Handler: unaryMethod("/"+ChangeServiceName+"/DispenseChange", ChangeServiceServer.DispenseChange)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kiosk/v1/change.proto",
}

// RegisterChangeServiceServer サービスを登録
func RegisterChangeServiceServer(s grpc.ServiceRegistrar, srv ChangeServiceServer) {
	s.RegisterService(&ChangeServiceDesc, srv)
}

// ChangeHandler ChangeServiceの実装
type ChangeHandler struct {
	paymentService  *paymentapp.PaymentApplicationService
	dispenseService *dispenseapp.DispenseApplicationService
}

// NewChangeHandler 新しいChangeHandlerを作成
func NewChangeHandler(
	paymentService *paymentapp.PaymentApplicationService,
	dispenseService *dispenseapp.DispenseApplicationService,
) *ChangeHandler {
	return &ChangeHandler{
		paymentService:  paymentService,
		dispenseService: dispenseService,
	}
}

var _ ChangeServiceServer = (*ChangeHandler)(nil)

// SuggestPayments 支払額の候補を返す
// リクエスト: {"total_cost": number}
func (h *ChangeHandler) SuggestPayments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	totalCost, err := int64Field(req, "total_cost")
	if err != nil {
		return nil, err
	}

	resp, err := h.paymentService.SuggestPayments(ctx, &paymentapp.SuggestPaymentsRequest{TotalCost: totalCost})
	if err != nil {
		return nil, toStatus(err)
	}

	suggestions := make([]interface{}, 0, len(resp.Suggestions))
	for _, sg := range resp.Suggestions {
		suggestions = append(suggestions, suggestionValue(sg))
	}
	return newStruct(map[string]interface{}{
		"total_cost":  resp.TotalCost,
		"suggestions": suggestions,
	})
}

// ValidatePayment 支払額を検証する
// リクエスト: {"total_cost": number, "payment_amount": number}
func (h *ChangeHandler) ValidatePayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	totalCost, err := int64Field(req, "total_cost")
	if err != nil {
		return nil, err
	}
	paymentAmount, err := int64Field(req, "payment_amount")
	if err != nil {
		return nil, err
	}

	resp, err := h.paymentService.ValidatePayment(ctx, &paymentapp.ValidatePaymentRequest{
		TotalCost:     totalCost,
		PaymentAmount: paymentAmount,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return newStruct(map[string]interface{}{
		"valid":     resp.Valid,
		"change":    resp.Change,
		"reason":    resp.Reason,
		"message":   resp.Message,
		"breakdown": breakdownValue(resp.Breakdown),
	})
}

// BestPayment 受け付けられる最大の支払額を返す
func (h *ChangeHandler) BestPayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	totalCost, err := int64Field(req, "total_cost")
	if err != nil {
		return nil, err
	}

	resp, err := h.paymentService.BestPayment(ctx, &paymentapp.BestPaymentRequest{TotalCost: totalCost})
	if err != nil {
		return nil, toStatus(err)
	}

	return newStruct(map[string]interface{}{
		"total_cost": resp.TotalCost,
		"suggestion": suggestionValue(resp.Suggestion),
	})
}

// GetChangeStatus おつり払い出し能力を返す
func (h *ChangeHandler) GetChangeStatus(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	resp, err := h.paymentService.ChangeStatus(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	return newStruct(map[string]interface{}{
		"level":       resp.Level,
		"max_change":  resp.MaxChange,
		"message":     resp.Message,
		"inventory":   breakdownValue(resp.Inventory),
		"dispensable": breakdownValue(resp.Dispensable),
		"reserves":    breakdownValue(resp.Reserves),
	})
}

// DispenseChange おつりを払い出す
// ジャムなどの部分的な払い出しはエラーではなく success=false で返す
func (h *ChangeHandler) DispenseChange(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	amount, err := int64Field(req, "amount")
	if err != nil {
		return nil, err
	}
	reference, err := stringField(req, "reference")
	if err != nil {
		return nil, err
	}

	resp, err := h.dispenseService.DispenseChange(ctx, &dispenseapp.DispenseChangeRequest{
		Amount:    amount,
		Reference: reference,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	failures := make([]interface{}, 0, len(resp.Failures))
	for _, f := range resp.Failures {
		failures = append(failures, map[string]interface{}{
			"denomination": f.Denomination,
			"requested":    f.Requested,
			"confirmed":    f.Confirmed,
			"reason":       f.Reason,
			"message":      f.Message,
		})
	}

	return newStruct(map[string]interface{}{
		"record_id":         resp.RecordID,
		"success":           resp.Success,
		"status":            resp.Status,
		"amount_requested":  resp.AmountRequested,
		"amount_dispensed":  resp.AmountDispensed,
		"requested":         breakdownValue(resp.Requested),
		"dispensed":         breakdownValue(resp.Dispensed),
		"failures":          failures,
		"inventory_updated": resp.InventoryUpdated,
		"message":           resp.Message,
	})
}

func suggestionValue(sg paymentapp.Suggestion) map[string]interface{} {
	return map[string]interface{}{
		"amount":    sg.Amount,
		"change":    sg.Change,
		"tier":      sg.Tier,
		"label":     sg.Label,
		"breakdown": breakdownValue(sg.Breakdown),
	}
}
