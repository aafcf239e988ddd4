package health

import (
	"context"
	"fmt"

	"edustack-hq/turnstile/pkg/admission"
)

// Utilization states.
const (
	StateHealthy  = "healthy"
	StateWarning  = "warning"
	StateCritical = "critical"
)

// Classification thresholds on used/limit ratios.
const (
	warningThreshold  = 0.75
	criticalThreshold = 0.90
)

// UtilizationReport is the classified view of a set of windows.
type UtilizationReport struct {
	// State is the worst classification across all windows.
	State string `json:"state"`

	// Windows carries the per-window usage that produced the state.
	Windows []admission.WindowUtilization `json:"windows"`
}

// ClassifyRatio maps a used/limit ratio onto a state.
func ClassifyRatio(ratio float64) string {
	switch {
	case ratio >= criticalThreshold:
		return StateCritical
	case ratio >= warningThreshold:
		return StateWarning
	default:
		return StateHealthy
	}
}

// ClassifyUtilization classifies a set of windows; the worst window
// determines the overall state.
func ClassifyUtilization(windows []admission.WindowUtilization) UtilizationReport {
	state := StateHealthy
	for _, w := range windows {
		switch ClassifyRatio(w.Ratio) {
		case StateCritical:
			state = StateCritical
		case StateWarning:
			if state == StateHealthy {
				state = StateWarning
			}
		}
	}
	return UtilizationReport{State: state, Windows: windows}
}

// UtilizationCheck builds a readiness check from a utilization source.
// The check fails only at critical utilization; warning still counts
// as ready.
func UtilizationCheck(source func() []admission.WindowUtilization) CheckFunc {
	return func(ctx context.Context) error {
		report := ClassifyUtilization(source())
		if report.State == StateCritical {
			return fmt.Errorf("utilization critical")
		}
		return nil
	}
}
