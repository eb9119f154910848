// Package workerapi は worker.v1.WorkerService のサービス記述子です。
// リクエストとレスポンスは google.protobuf.Struct で表現し、キーは snake_case を使います。
package workerapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName は完全修飾のサービス名です。
const ServiceName = "worker.v1.WorkerService"

const (
	MethodTransitionWorkerStatus = "TransitionWorkerStatus"
	MethodGetValidTransitions    = "GetValidTransitions"
	MethodGetWorker              = "GetWorker"
	MethodListWorkers            = "ListWorkers"
	MethodListStatusHistory      = "ListStatusHistory"
	MethodDeleteWorker           = "DeleteWorker"
	MethodUpdateWorkerProfile    = "UpdateWorkerProfile"
)

// WorkerServiceServer はサーバー側の実装が満たすインターフェースです。
type WorkerServiceServer interface {
	TransitionWorkerStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetValidTransitions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetWorker(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListWorkers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListStatusHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteWorker(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateWorkerProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedWorkerServiceServer は未実装のメソッドに Unimplemented を返します。
type UnimplementedWorkerServiceServer struct{}

func (UnimplementedWorkerServiceServer) TransitionWorkerStatus(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method TransitionWorkerStatus not implemented")
}

func (UnimplementedWorkerServiceServer) GetValidTransitions(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetValidTransitions not implemented")
}

func (UnimplementedWorkerServiceServer) GetWorker(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetWorker not implemented")
}

func (UnimplementedWorkerServiceServer) ListWorkers(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListWorkers not implemented")
}

func (UnimplementedWorkerServiceServer) ListStatusHistory(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListStatusHistory not implemented")
}

func (UnimplementedWorkerServiceServer) DeleteWorker(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteWorker not implemented")
}

func (UnimplementedWorkerServiceServer) UpdateWorkerProfile(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateWorkerProfile not implemented")
}

type unaryCall func(WorkerServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(method string, call unaryCall) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(WorkerServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(WorkerServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc は grpc.Server へ登録するためのサービス記述子です。
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WorkerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodTransitionWorkerStatus, WorkerServiceServer.TransitionWorkerStatus),
		unaryMethod(MethodGetValidTransitions, WorkerServiceServer.GetValidTransitions),
		unaryMethod(MethodGetWorker, WorkerServiceServer.GetWorker),
		unaryMethod(MethodListWorkers, WorkerServiceServer.ListWorkers),
		unaryMethod(MethodListStatusHistory, WorkerServiceServer.ListStatusHistory),
		unaryMethod(MethodDeleteWorker, WorkerServiceServer.DeleteWorker),
		unaryMethod(MethodUpdateWorkerProfile, WorkerServiceServer.UpdateWorkerProfile),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "worker/v1/worker_service.proto",
}

// RegisterWorkerServiceServer はサーバーに WorkerService を登録します。
func RegisterWorkerServiceServer(s grpc.ServiceRegistrar, srv WorkerServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
