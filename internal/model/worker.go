package model

import (
	"time"

	"benchhub/pkg/constants"
)

// Worker is one benchmarking device in the fleet.
type Worker struct {
	ID           string                 `json:"worker_id"`
	UDID         string                 `json:"udid,omitempty"` // Stable device identity; registration is idempotent on it
	DeviceName   string                 `json:"device_name"`
	IPAddress    string                 `json:"ip_address"`
	Capabilities []string               `json:"capabilities"` // Compute units this device can execute
	DeviceInfo   map[string]interface{} `json:"device_info,omitempty"`
	Status       constants.WorkerStatus `json:"status"`

	// CurrentJobID is non-empty iff Status == busy: a worker owns at most one
	// in-flight assignment.
	CurrentJobID string `json:"current_job_id,omitempty"`

	LastHeartbeat time.Time `json:"last_heartbeat"`
	RegisteredAt  time.Time `json:"registered_at"`
}

// HasCapability reports whether the worker can execute the compute unit.
func (w *Worker) HasCapability(computeUnit string) bool {
	for _, c := range w.Capabilities {
		if c == computeUnit {
			return true
		}
	}
	return false
}

// InfoString returns a device_info field as a string, or "" when absent.
func (w *Worker) InfoString(key string) string {
	if w.DeviceInfo == nil {
		return ""
	}
	if v, ok := w.DeviceInfo[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// RegisterRequest worker registration payload
type RegisterRequest struct {
	UDID         string                 `json:"udid"`
	DeviceName   string                 `json:"device_name" binding:"required"`
	IPAddress    string                 `json:"ip_address" binding:"required"`
	Capabilities []string               `json:"capabilities" binding:"required"`
	DeviceInfo   map[string]interface{} `json:"device_info" binding:"required"`
}

// RegisterAction whether registration created or updated the record
type RegisterAction string

const (
	RegisterActionCreated RegisterAction = "created"
	RegisterActionUpdated RegisterAction = "updated"
)

// RegisterResponse worker registration response
type RegisterResponse struct {
	WorkerID string         `json:"worker_id"`
	Action   RegisterAction `json:"action"`
}

// StatusUpdateRequest set_status payload
type StatusUpdateRequest struct {
	Status constants.WorkerStatus `json:"status" binding:"required"`
}

// WorkerHealth heartbeat freshness for one worker
type WorkerHealth struct {
	WorkerID           string                 `json:"worker_id"`
	Status             constants.WorkerStatus `json:"status"`
	Healthy            bool                   `json:"healthy"`
	SecondsSinceBeat   float64                `json:"seconds_since_heartbeat"`
	HeartbeatTimeoutMs int64                  `json:"heartbeat_timeout_ms"`
}
