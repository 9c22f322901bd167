package handler

import (
	"errors"

	"change-server/internal/domain/change"
	"change-server/internal/domain/coin"
	"change-server/internal/domain/dispense"
	"change-server/internal/domain/hopper"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var errorCodes = []struct {
	err  error
	code codes.Code
}{
	{change.ErrInvalidAmount, codes.InvalidArgument},
	{change.ErrInvalidPolicy, codes.InvalidArgument},
	{coin.ErrInvalidDenomination, codes.InvalidArgument},
	{dispense.ErrReasonRequired, codes.InvalidArgument},
	{dispense.ErrInvalidRecord, codes.InvalidArgument},
	{dispense.ErrRecordNotFound, codes.NotFound},
	{change.ErrInsufficientPayment, codes.FailedPrecondition},
	{change.ErrChangeLimitExceeded, codes.FailedPrecondition},
	{change.ErrInsufficientReserve, codes.FailedPrecondition},
	{change.ErrUnrepresentable, codes.FailedPrecondition},
	{coin.ErrNegativeCount, codes.FailedPrecondition},
	{coin.ErrInsufficientCoins, codes.FailedPrecondition},
	{coin.ErrInventoryUnavailable, codes.Unavailable},
	{hopper.ErrHardwareUnavailable, codes.Unavailable},
}

// toStatus ドメインエラーをgRPCステータスに変換
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			return status.Error(m.code, err.Error())
		}
	}
	return status.Error(codes.Internal, "an unexpected error occurred")
}
