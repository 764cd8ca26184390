package constants

// Worker status constants
type WorkerStatus string

const (
	WorkerStatusActive  WorkerStatus = "active"  // Ready to accept jobs
	WorkerStatusBusy    WorkerStatus = "busy"    // Executing exactly one job
	WorkerStatusCleanup WorkerStatus = "cleanup" // Intentionally offline, excluded from dispatch
	WorkerStatusFaulty  WorkerStatus = "faulty"  // Unresponsive, recovered only by explicit reset
)

func (s WorkerStatus) String() string {
	return string(s)
}

// Valid reports whether s is a known worker status.
func (s WorkerStatus) Valid() bool {
	switch s {
	case WorkerStatusActive, WorkerStatusBusy, WorkerStatusCleanup, WorkerStatusFaulty:
		return true
	}
	return false
}
