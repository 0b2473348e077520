package domain

import "fmt"

const (
	// DefaultMaxSpeed is the plausibility ceiling for CME speed, in km/s.
	DefaultMaxSpeed = 2000.0
	// DefaultMaxHalfAngle is the plausibility ceiling for half-angle, in degrees.
	DefaultMaxHalfAngle = 90.0

	RuleMaxSpeed     = "max_speed"
	RuleMaxHalfAngle = "max_half_angle"
)

// Rules holds the thresholds for the advisory plausibility checks.
type Rules struct {
	MaxSpeed     float64 `yaml:"max_speed"`
	MaxHalfAngle float64 `yaml:"max_half_angle"`
}

// DefaultRules returns the built-in thresholds.
func DefaultRules() Rules {
	return Rules{MaxSpeed: DefaultMaxSpeed, MaxHalfAngle: DefaultMaxHalfAngle}
}

// Validate rejects non-positive thresholds.
func (r Rules) Validate() error {
	if r.MaxSpeed <= 0 {
		return fmt.Errorf("max_speed must be positive, got %g", r.MaxSpeed)
	}
	if r.MaxHalfAngle <= 0 {
		return fmt.Errorf("max_half_angle must be positive, got %g", r.MaxHalfAngle)
	}
	return nil
}

// Anomaly is a record value that exceeded a plausibility threshold.
type Anomaly struct {
	Rule          string
	DatetimeEvent string
	Value         float64
	Threshold     float64
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s: %s value %g exceeds %g", a.Rule, a.DatetimeEvent, a.Value, a.Threshold)
}

// Check runs every rule over the batch. It never modifies the records.
func (r Rules) Check(records []CMERecord) []Anomaly {
	anomalies := CheckMaxSpeed(records, r.MaxSpeed)
	return append(anomalies, CheckMaxHalfAngle(records, r.MaxHalfAngle)...)
}

// CheckMaxSpeed flags records faster than maxSpeed km/s.
func CheckMaxSpeed(records []CMERecord, maxSpeed float64) []Anomaly {
	return checkMax(records, RuleMaxSpeed, maxSpeed, func(r CMERecord) float64 { return r.Speed })
}

// CheckMaxHalfAngle flags records wider than maxHalfAngle degrees.
func CheckMaxHalfAngle(records []CMERecord, maxHalfAngle float64) []Anomaly {
	return checkMax(records, RuleMaxHalfAngle, maxHalfAngle, func(r CMERecord) float64 { return r.HalfAngle })
}

func checkMax(records []CMERecord, rule string, threshold float64, value func(CMERecord) float64) []Anomaly {
	var anomalies []Anomaly
	for _, rec := range records {
		if v := value(rec); v > threshold {
			anomalies = append(anomalies, Anomaly{
				Rule:          rule,
				DatetimeEvent: rec.DatetimeEvent,
				Value:         v,
				Threshold:     threshold,
			})
		}
	}
	return anomalies
}
