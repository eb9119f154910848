package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/ogurasousui/worker-lifecycle/internal/adapters/grpc/handler"
	"github.com/ogurasousui/worker-lifecycle/internal/adapters/grpc/workerapi"
	"github.com/ogurasousui/worker-lifecycle/internal/core/worker"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server は gRPC サーバーのライフサイクルを管理します。
type Server struct {
	listenAddr string
	grpcServer *grpc.Server
	health     *health.Server
	logger     logrus.FieldLogger
}

// New は指定されたアドレスで待ち受ける gRPC サーバーを構築します。
// WorkerService と標準のヘルスチェックサービスを登録します。
func New(listenAddr string, workers worker.UseCase, logger logrus.FieldLogger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		discard := logrus.New()
		discard.SetLevel(logrus.PanicLevel)
		logger = discard
	}

	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(UnaryLoggingInterceptor(logger))}, opts...)
	srv := grpc.NewServer(opts...)
	workerapi.RegisterWorkerServiceServer(srv, handler.NewWorkerGrpcHandler(workers))

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(workerapi.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthSrv)

	return &Server{
		listenAddr: listenAddr,
		grpcServer: srv,
		health:     healthSrv,
		logger:     logger,
	}
}

// Run はサーバーを起動し、コンテキストがキャンセルされると GracefulStop します。
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listenAddr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve は与えられたリスナーで待ち受けます。
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	s.logger.WithFields(logrus.Fields{
		"event": "GrpcServerStarted",
		"addr":  lis.Addr().String(),
	}).Info("gRPC server listening")

	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	return nil
}

// GracefulStop はヘルスチェックを NOT_SERVING にしてからサーバーを安全に停止します。
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
