package constants

// Compute unit identifiers a worker can advertise as capabilities.
const (
	ComputeUnitCPUONNX            = "CPU (ONNX)"
	ComputeUnitGPUONNX            = "GPU (ONNX)"
	ComputeUnitDirectMLONNX       = "DirectML (ONNX)"
	ComputeUnitOpenVINOONNX       = "OpenVINO (ONNX)"
	ComputeUnitGPUCoreML          = "GPU (CoreML)"
	ComputeUnitNeuralEngineCoreML = "Neural Engine (CoreML)"
)

// AllowedComputeUnits are the compute units jobs may request.
var AllowedComputeUnits = []string{
	ComputeUnitCPUONNX,
	ComputeUnitGPUONNX,
	ComputeUnitGPUCoreML,
	ComputeUnitNeuralEngineCoreML,
}

// ComputeUnitAllowed reports whether unit may be requested by a job.
func ComputeUnitAllowed(unit string) bool {
	for _, u := range AllowedComputeUnits {
		if u == unit {
			return true
		}
	}
	return false
}
