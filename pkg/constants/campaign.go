package constants

// Campaign status constants. Campaign status is always derived from job
// statuses, never set directly by callers.
type CampaignStatus string

const (
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusPartial   CampaignStatus = "partial"
)

func (s CampaignStatus) String() string {
	return string(s)
}
