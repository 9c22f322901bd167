package handler

import (
	"context"
	"math"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// int64Field 必須の整数フィールドを取得
func int64Field(s *structpb.Struct, name string) (int64, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	num, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", name)
	}
	f := num.NumberValue
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer", name)
	}
	return int64(f), nil
}

// stringField 任意の文字列フィールドを取得
func stringField(s *structpb.Struct, name string) (string, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return "", nil
	}
	str, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "%s must be a string", name)
	}
	return str.StringValue, nil
}

// breakdownValue 額面ごとの枚数を文字列キーのマップに変換
func breakdownValue(m map[int64]int64) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for d, n := range m {
		out[strconv.FormatInt(d, 10)] = n
	}
	return out
}

func newStruct(fields map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return s, nil
}

// unaryMethod structpb.Structを受け渡すメソッドのハンドラーを作成
func unaryMethod[S any](
	fullMethod string,
	call func(S, context.Context, *structpb.Struct) (*structpb.Struct, error),
) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(S), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(S), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
