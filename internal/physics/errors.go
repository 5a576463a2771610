package physics

import "fmt"

// ConfigurationError reports degenerate parameters detected before a simulation starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// IntegrationError reports a flight whose state stopped being finite.
type IntegrationError struct {
	Time   float64
	Step   float64
	Reason string
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("integration diverged at t=%.4fs (step %.5fs): %s", e.Time, e.Step, e.Reason)
}

// UnreachableTargetWarning marks an actor whose target cannot be reached within
// the simulation horizon. It is not fatal; the affected race becomes a non-event.
type UnreachableTargetWarning struct {
	Actor  string
	Target Vec3
	Reason string
}

func (w *UnreachableTargetWarning) Error() string {
	return fmt.Sprintf("%s cannot reach (%.1f, %.1f, %.1f): %s", w.Actor, w.Target[0], w.Target[1], w.Target[2], w.Reason)
}

func configErr(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
