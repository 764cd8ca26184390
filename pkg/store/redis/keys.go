package redis

// Key layout. Every orchestrator key lives under one of these prefixes so a
// full reset can find them all.
const (
	workerKeyPrefix     = "worker:"       // worker:{id} -> Worker JSON
	workerIndexKey      = "workers:index" // set of worker ids
	workerUDIDKeyPrefix = "workerudid:"   // workerudid:{udid} -> worker id

	campaignKeyPrefix  = "campaign:"       // campaign:{id} -> Campaign JSON
	campaignIndexKey   = "campaigns:index" // list of campaign ids, creation order
	campaignJobsPrefix = "campaignjobs:"   // campaignjobs:{id} -> list of job ids, creation order

	jobKeyPrefix  = "job:"         // job:{id} -> Job JSON
	runningSetKey = "jobs:running" // set of running job ids

	resultKeyPrefix = "result:" // result:{job_id} -> Result JSON

	capabilityQueuePrefix = "jobs:capability:" // jobs:capability:{unit} -> pending job id list (FIFO)
	pinnedQueuePrefix     = "jobs:pinned:"     // jobs:pinned:{worker_id} -> pending job id list (FIFO)
	deliveryQueuePrefix   = "deliver:"         // deliver:{worker_id} -> JobDescriptor JSON list

	lockKeyPrefix = "lock:" // lock:{name} -> sweep/dispatch mutexes
)

func workerKey(id string) string       { return workerKeyPrefix + id }
func workerUDIDKey(udid string) string { return workerUDIDKeyPrefix + udid }
func campaignKey(id string) string     { return campaignKeyPrefix + id }
func campaignJobsKey(id string) string { return campaignJobsPrefix + id }
func jobKey(id string) string          { return jobKeyPrefix + id }
func resultKey(jobID string) string    { return resultKeyPrefix + jobID }

// CapabilityQueueKey names the pending queue for a compute unit.
func CapabilityQueueKey(unit string) string { return capabilityQueuePrefix + unit }

// PinnedQueueKey names the pending queue of jobs statically assigned to a worker.
func PinnedQueueKey(workerID string) string { return pinnedQueuePrefix + workerID }

// DeliveryQueueKey names the delivery channel of a worker.
func DeliveryQueueKey(workerID string) string { return deliveryQueuePrefix + workerID }

// resetPrefixes are scanned when clearing all orchestrator state.
var resetPrefixes = []string{
	workerKeyPrefix, workerUDIDKeyPrefix,
	campaignKeyPrefix, campaignJobsPrefix,
	jobKeyPrefix, resultKeyPrefix,
	capabilityQueuePrefix, pinnedQueuePrefix, deliveryQueuePrefix,
}

// resetKeys are fixed keys cleared alongside the prefixed ones.
var resetKeys = []string{workerIndexKey, campaignIndexKey, runningSetKey}
