// Package domain contains the punctuality state model: statuses, the pure
// classifier and the two-sample debounce rule.
package domain

// Status is the punctuality classification of an upcoming appointment.
type Status string

const (
	StatusNoData       Status = "no_data"
	StatusOnTime       Status = "on_time"
	StatusLateOK       Status = "late_ok"
	StatusLateCritical Status = "late_critical"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNoData, StatusOnTime, StatusLateOK, StatusLateCritical:
		return true
	}
	return false
}

// Late reports whether the status represents a predicted late arrival.
func (s Status) Late() bool {
	return s == StatusLateOK || s == StatusLateCritical
}

// Classify derives a point-in-time status from a single ETA observation.
// It is a pure function: no clock, no persistence.
//
// predicted delay = eta - minutes to start; zero or negative means on time,
// a delay within the allowed budget is late_ok, beyond it late_critical.
func Classify(etaMinutes *int, minutesToStart, maxAllowedDelay int) Status {
	if etaMinutes == nil {
		return StatusNoData
	}
	delay := *etaMinutes - minutesToStart
	switch {
	case delay <= 0:
		return StatusOnTime
	case delay <= maxAllowedDelay:
		return StatusLateOK
	default:
		return StatusLateCritical
	}
}

// PredictedDelay computes eta - minutesToStart, or nil without an ETA.
func PredictedDelay(etaMinutes *int, minutesToStart int) *int {
	if etaMinutes == nil {
		return nil
	}
	delay := *etaMinutes - minutesToStart
	return &delay
}

// Debounce resolves the status to commit given the two newest snapshots
// (latest first) and the currently committed status.
//
// A transition is committed only when both snapshots agree on the same new
// value. With fewer than two samples, or on disagreement, the previously
// committed status is held. A single noisy ETA sample therefore never flips
// the appointment.
func Debounce(latest, previous *EtaSnapshot, committed Status) Status {
	if latest == nil || previous == nil {
		return committed
	}
	if latest.Status != previous.Status {
		return committed
	}
	return latest.Status
}
