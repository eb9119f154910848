package worker

import "errors"

var (
	ErrInvalidID               = errors.New("worker: invalid id")
	ErrInvalidTenantID         = errors.New("worker: invalid tenant id")
	ErrInvalidCandidateID      = errors.New("worker: invalid candidate id")
	ErrInvalidStatus           = errors.New("worker: invalid status")
	ErrInvalidCategory         = errors.New("worker: invalid category")
	ErrInvalidPageSize         = errors.New("worker: invalid page size")
	ErrInvalidPageToken        = errors.New("worker: invalid page token")
	ErrInvalidWorkerCode       = errors.New("worker: invalid worker code")
	ErrActorRequired           = errors.New("worker: actor user id is required")
	ErrInvalidProfile          = errors.New("worker: invalid profile")
	ErrWorkerNotFound          = errors.New("worker: not found")
	ErrWorkerAlreadyExists     = errors.New("worker: already exists for candidate")
	ErrWorkerCodeAlreadyExists = errors.New("worker: worker code already exists")
	// ErrConcurrentModification は楽観ロックの競合時に返却されます。再試行可能です。
	ErrConcurrentModification = errors.New("worker: concurrent modification")
)
