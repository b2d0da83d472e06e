package entities

import "fmt"

type DeliveryMode string

const (
	ModeInstant      DeliveryMode = "instant"
	ModeTwoHourBatch DeliveryMode = "two_hours"
	ModePullOnDemand DeliveryMode = "button_click"
	ModeSupport      DeliveryMode = "support"
)

func ToDeliveryMode(s string) (DeliveryMode, error) {
	switch s {
	case string(ModeInstant):
		return ModeInstant, nil
	case string(ModeTwoHourBatch):
		return ModeTwoHourBatch, nil
	case string(ModePullOnDemand):
		return ModePullOnDemand, nil
	case string(ModeSupport):
		return ModeSupport, nil
	default:
		return "", fmt.Errorf("invalid delivery mode: %q", s)
	}
}

// Partition returns the backlog partition a deferred mode accumulates into.
func (m DeliveryMode) Partition() (BacklogPartition, bool) {
	switch m {
	case ModeTwoHourBatch:
		return PartitionTwoHours, true
	case ModePullOnDemand:
		return PartitionPull, true
	default:
		return "", false
	}
}
