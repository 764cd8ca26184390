package constants

// Job status constants
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusComplete  JobStatus = "complete"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) String() string {
	return string(s)
}

// Terminal reports whether s is a final job status.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusComplete, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Result status constants (status field of a worker result payload)
type ResultStatus string

const (
	ResultStatusComplete  ResultStatus = "Complete"
	ResultStatusFailed    ResultStatus = "Failed"
	ResultStatusCancelled ResultStatus = "Cancelled"
)

func (s ResultStatus) String() string {
	return string(s)
}

// Valid reports whether s is a status a worker may report.
func (s ResultStatus) Valid() bool {
	switch s {
	case ResultStatusComplete, ResultStatusFailed, ResultStatusCancelled:
		return true
	}
	return false
}

// JobStatus maps a result status to the job status it produces.
func (s ResultStatus) JobStatus() JobStatus {
	switch s {
	case ResultStatusComplete:
		return JobStatusComplete
	case ResultStatusCancelled:
		return JobStatusCancelled
	default:
		return JobStatusFailed
	}
}
