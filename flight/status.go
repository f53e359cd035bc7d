package flight

// EmergencyStatus describes how far the failsafe has progressed. It only
// ever advances.
type EmergencyStatus int

// The emergency statuses, in the order they are reached.
const (
	StatusStandby EmergencyStatus = iota
	StatusTriggered
	StatusActive
)

func (s EmergencyStatus) String() string {
	switch s {
	case StatusStandby:
		return "STANDBY"
	case StatusTriggered:
		return "TRIGGERED"
	case StatusActive:
		return "ACTIVE"
	default:
		return "UNKNOWN"
	}
}
