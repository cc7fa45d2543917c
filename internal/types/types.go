// Package types contains the shared value types passed between the sensor,
// decision and actuation stages of the chamber controller.
package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Phase is the cultivation stage of the chamber. Spawning wants CO2
// accumulation; fruiting wants fresh-air exchange and low CO2.
type Phase int

const (
	Spawning Phase = iota
	Fruiting
)

func (p Phase) String() string {
	switch p {
	case Spawning:
		return "spawning"
	case Fruiting:
		return "fruiting"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ParsePhase accepts the single-letter wire codes used by the sensor bridge
// ("s"/"f") as well as the full phase names.
func ParsePhase(s string) (Phase, error) {
	switch s {
	case "s", "spawning", "colonisation":
		return Spawning, nil
	case "f", "fruiting":
		return Fruiting, nil
	}
	return Spawning, fmt.Errorf("unknown phase %q", s)
}

// SensorSnapshot is one validated environmental reading. A new snapshot fully
// replaces the previous one; the control loop never merges readings.
type SensorSnapshot struct {
	CO2         int       `json:"co2"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Phase       Phase     `json:"phase"`
	ObservedAt  time.Time `json:"observed_at"`
}

// Actuator names one of the chamber's relay-driven outputs.
type Actuator string

const (
	ExhaustFan Actuator = "exhaust_fan"
	BlowerFan  Actuator = "blower_fan"
	Humidifier Actuator = "humidifier"
	LEDLights  Actuator = "led_lights"
)

// Actuators lists every output in a stable order.
var Actuators = []Actuator{ExhaustFan, BlowerFan, Humidifier, LEDLights}

// ActuatorStateSet is the authoritative "what is currently commanded" record.
// Hardware is always driven to match it and never read back.
type ActuatorStateSet struct {
	ExhaustFan bool `json:"exhaust_fan"`
	BlowerFan  bool `json:"blower_fan"`
	Humidifier bool `json:"humidifier"`
	LEDLights  bool `json:"led_lights"`
}

// Get returns the commanded state of a single actuator.
func (s ActuatorStateSet) Get(a Actuator) bool {
	switch a {
	case ExhaustFan:
		return s.ExhaustFan
	case BlowerFan:
		return s.BlowerFan
	case Humidifier:
		return s.Humidifier
	case LEDLights:
		return s.LEDLights
	}
	return false
}

// Set returns a copy of the state set with one actuator changed.
func (s ActuatorStateSet) Set(a Actuator, on bool) ActuatorStateSet {
	switch a {
	case ExhaustFan:
		s.ExhaustFan = on
	case BlowerFan:
		s.BlowerFan = on
	case Humidifier:
		s.Humidifier = on
	case LEDLights:
		s.LEDLights = on
	}
	return s
}

// ActuatorDelta holds only the actuators a decision wants changed.
type ActuatorDelta map[Actuator]bool

// Apply returns the state set with the delta applied.
func (d ActuatorDelta) Apply(s ActuatorStateSet) ActuatorStateSet {
	for a, on := range d {
		s = s.Set(a, on)
	}
	return s
}

// Decision is one audited output of the control loop: the sensor context,
// the actuator changes it produced and the reasoning behind them. Decisions
// are immutable once created.
type Decision struct {
	ID        uuid.UUID        `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	Phase     Phase            `json:"phase"`
	Snapshot  SensorSnapshot   `json:"snapshot"`
	Actions   ActuatorDelta    `json:"actions,omitempty"`
	Reasoning []string         `json:"reasoning,omitempty"`
	Enabled   bool             `json:"enabled"`
	Failed    bool             `json:"failed,omitempty"`
	Err       string           `json:"error,omitempty"`
	Resulting ActuatorStateSet `json:"resulting_state"`
}
