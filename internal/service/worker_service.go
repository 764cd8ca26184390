package service

import (
	"context"
	"fmt"
	"time"

	"benchhub/internal/core"
	"benchhub/internal/model"
	"benchhub/pkg/constants"
	"benchhub/pkg/logger"
	redisstore "benchhub/pkg/store/redis"

	"github.com/google/uuid"
)

// Ticker triggers a dispatch pass. Satisfied by dispatch.Dispatcher; nil
// disables event-driven dispatch (the periodic safety tick still runs).
type Ticker interface {
	Tick(ctx context.Context) (int, error)
}

// WorkerService implements the worker registry and its state machine.
type WorkerService struct {
	store            *redisstore.Store
	dispatcher       Ticker
	heartbeatTimeout time.Duration
}

func NewWorkerService(store *redisstore.Store, heartbeatTimeout time.Duration) *WorkerService {
	return &WorkerService{store: store, heartbeatTimeout: heartbeatTimeout}
}

// SetDispatcher wires the event-driven dispatch trigger. Separate from the
// constructor because the dispatcher and the services reference each other.
func (s *WorkerService) SetDispatcher(d Ticker) {
	s.dispatcher = d
}

func (s *WorkerService) tick(ctx context.Context) {
	if s.dispatcher == nil {
		return
	}
	if _, err := s.dispatcher.Tick(ctx); err != nil {
		logger.Warnf("Dispatch tick failed: %v", err)
	}
}

// Register enrolls a device, idempotently when it reports a UDID: the first
// sight creates an active worker, later calls update the mutable fields and
// refresh the heartbeat without resetting busy or faulty status.
func (s *WorkerService) Register(ctx context.Context, req *model.RegisterRequest) (*model.RegisterResponse, error) {
	if len(req.Capabilities) == 0 {
		return nil, fmt.Errorf("capabilities must not be empty: %w", core.ErrInvalidState)
	}
	for _, c := range req.Capabilities {
		if !constants.ComputeUnitAllowed(c) {
			return nil, fmt.Errorf("unknown compute unit %q: %w", c, core.ErrInvalidState)
		}
	}

	if req.UDID != "" {
		workerID, err := s.store.GetWorkerIDByUDID(ctx, req.UDID)
		if err == nil {
			updated, uerr := s.store.UpdateWorker(ctx, workerID, func(w *model.Worker) (bool, error) {
				w.DeviceName = req.DeviceName
				w.IPAddress = req.IPAddress
				w.Capabilities = req.Capabilities
				w.DeviceInfo = req.DeviceInfo
				w.LastHeartbeat = time.Now()
				return true, nil
			})
			if uerr != nil {
				return nil, uerr
			}
			logger.Infof("Worker %s re-registered (device %s)", updated.ID, updated.DeviceName)
			s.tick(ctx)
			return &model.RegisterResponse{WorkerID: updated.ID, Action: model.RegisterActionUpdated}, nil
		}
		if err != core.ErrNotFound {
			return nil, err
		}
	}

	now := time.Now()
	worker := &model.Worker{
		ID:            "worker-" + uuid.New().String(),
		UDID:          req.UDID,
		DeviceName:    req.DeviceName,
		IPAddress:     req.IPAddress,
		Capabilities:  req.Capabilities,
		DeviceInfo:    req.DeviceInfo,
		Status:        constants.WorkerStatusActive,
		LastHeartbeat: now,
		RegisteredAt:  now,
	}
	if err := s.store.SaveWorker(ctx, worker); err != nil {
		return nil, err
	}
	logger.Infof("Worker %s registered (device %s, capabilities %v)", worker.ID, worker.DeviceName, worker.Capabilities)
	s.tick(ctx)
	return &model.RegisterResponse{WorkerID: worker.ID, Action: model.RegisterActionCreated}, nil
}

// Get returns one worker record.
func (s *WorkerService) Get(ctx context.Context, workerID string) (*model.Worker, error) {
	return s.store.GetWorker(ctx, workerID)
}

// List returns all worker records sorted by id.
func (s *WorkerService) List(ctx context.Context) ([]*model.Worker, error) {
	return s.store.GetAllWorkers(ctx)
}

// SetStatus applies an externally requested status. Busy is owned by the
// dispatcher and cannot be set here, and a worker holding a job must be
// cancelled or reclaimed before its status can change.
func (s *WorkerService) SetStatus(ctx context.Context, workerID string, status constants.WorkerStatus) (*model.Worker, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", status, core.ErrInvalidState)
	}
	if status == constants.WorkerStatusBusy {
		return nil, fmt.Errorf("busy is set by dispatch only: %w", core.ErrInvalidState)
	}
	worker, err := s.store.UpdateWorker(ctx, workerID, func(w *model.Worker) (bool, error) {
		if w.CurrentJobID != "" {
			return false, fmt.Errorf("worker holds job %s: %w", w.CurrentJobID, core.ErrInvalidState)
		}
		if w.Status == status {
			return false, nil
		}
		w.Status = status
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("Worker %s status set to %s", workerID, status)
	if status == constants.WorkerStatusActive {
		s.tick(ctx)
	}
	return worker, nil
}

// Heartbeat refreshes a worker's liveness timestamp. Status is untouched: a
// busy worker stays busy, a faulty one stays faulty until reset.
func (s *WorkerService) Heartbeat(ctx context.Context, workerID string) (*model.WorkerHealth, error) {
	worker, err := s.store.UpdateWorker(ctx, workerID, func(w *model.Worker) (bool, error) {
		w.LastHeartbeat = time.Now()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return s.health(worker), nil
}

// Health reports heartbeat freshness without refreshing it.
func (s *WorkerService) Health(ctx context.Context, workerID string) (*model.WorkerHealth, error) {
	worker, err := s.store.GetWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	return s.health(worker), nil
}

func (s *WorkerService) health(worker *model.Worker) *model.WorkerHealth {
	elapsed := time.Since(worker.LastHeartbeat)
	return &model.WorkerHealth{
		WorkerID:           worker.ID,
		Status:             worker.Status,
		Healthy:            elapsed < s.heartbeatTimeout,
		SecondsSinceBeat:   elapsed.Seconds(),
		HeartbeatTimeoutMs: s.heartbeatTimeout.Milliseconds(),
	}
}

// Reset returns a faulty or cleanup worker to active with a fresh heartbeat.
// Resetting an already-active worker is a no-op; a busy worker cannot be
// reset while it holds a job.
func (s *WorkerService) Reset(ctx context.Context, workerID string) (*model.Worker, error) {
	worker, err := s.store.UpdateWorker(ctx, workerID, func(w *model.Worker) (bool, error) {
		switch w.Status {
		case constants.WorkerStatusActive:
			return false, nil
		case constants.WorkerStatusBusy:
			return false, fmt.Errorf("worker holds job %s: %w", w.CurrentJobID, core.ErrInvalidState)
		}
		w.Status = constants.WorkerStatusActive
		w.CurrentJobID = ""
		w.LastHeartbeat = time.Now()
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("Worker %s reset to active", workerID)
	s.tick(ctx)
	return worker, nil
}
