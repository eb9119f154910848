package workerapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// WorkerServiceClient は WorkerService のクライアントです。
type WorkerServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewWorkerServiceClient は WorkerServiceClient を生成します。
func NewWorkerServiceClient(cc grpc.ClientConnInterface) *WorkerServiceClient {
	return &WorkerServiceClient{cc: cc}
}

// Call は指定したメソッドを呼び出します。
func (c *WorkerServiceClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *WorkerServiceClient) TransitionWorkerStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.Call(ctx, MethodTransitionWorkerStatus, in, opts...)
}

func (c *WorkerServiceClient) GetValidTransitions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.Call(ctx, MethodGetValidTransitions, in, opts...)
}

func (c *WorkerServiceClient) GetWorker(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.Call(ctx, MethodGetWorker, in, opts...)
}

func (c *WorkerServiceClient) ListWorkers(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.Call(ctx, MethodListWorkers, in, opts...)
}

func (c *WorkerServiceClient) ListStatusHistory(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.Call(ctx, MethodListStatusHistory, in, opts...)
}

func (c *WorkerServiceClient) DeleteWorker(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.Call(ctx, MethodDeleteWorker, in, opts...)
}

func (c *WorkerServiceClient) UpdateWorkerProfile(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.Call(ctx, MethodUpdateWorkerProfile, in, opts...)
}
