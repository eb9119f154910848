package handler

import (
	"errors"

	"github.com/ogurasousui/worker-lifecycle/internal/core/worker"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func toStatusError(err error) error {
	var rejection *worker.Rejection

	switch {
	case err == nil:
		return nil
	case errors.As(err, &rejection):
		return status.Error(codes.FailedPrecondition, rejection.Message)
	case errors.Is(err, worker.ErrInvalidID),
		errors.Is(err, worker.ErrInvalidTenantID),
		errors.Is(err, worker.ErrInvalidCandidateID),
		errors.Is(err, worker.ErrInvalidStatus),
		errors.Is(err, worker.ErrInvalidCategory),
		errors.Is(err, worker.ErrInvalidPageSize),
		errors.Is(err, worker.ErrInvalidPageToken),
		errors.Is(err, worker.ErrInvalidWorkerCode),
		errors.Is(err, worker.ErrActorRequired),
		errors.Is(err, worker.ErrInvalidProfile):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, worker.ErrWorkerAlreadyExists), errors.Is(err, worker.ErrWorkerCodeAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, worker.ErrWorkerNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, worker.ErrConcurrentModification):
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
