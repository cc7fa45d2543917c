// Package engine contains the rule-based decision engine for the chamber.
// The engine is pure: it sees a threshold model, one sensor snapshot and the
// currently commanded actuator states, and returns the actuator changes it
// wants plus the reasoning behind them. It performs no I/O and reads no
// clock, which keeps every rule unit-testable in isolation.
package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/thresholds"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/types"
)

// Engine produces actuator decisions from sensor snapshots. RuleBased is the
// only implementation today; the interface exists so an alternate engine can
// be swapped in behind the control loop without touching it.
type Engine interface {
	Decide(m thresholds.Model, snap types.SensorSnapshot, current types.ActuatorStateSet) types.Decision
}

// RuleBased is the deterministic threshold/hysteresis rule engine.
type RuleBased struct{}

// act records one actuator change and the audit text for it.
func act(d *types.Decision, a types.Actuator, on bool, reason string) {
	d.Actions[a] = on
	d.Reasoning = append(d.Reasoning, reason)
}

// NewRuleBased returns the standard rule engine.
func NewRuleBased() *RuleBased {
	return &RuleBased{}
}

// Decide runs the phase-specific rule table against one snapshot. Each rule
// emits an action only when it would change the currently commanded state;
// that is what prevents relay chattering. Rules run in a fixed order and a
// later rule may overwrite an earlier one for the same actuator within a
// single decision (in fruiting, the humidity rule can re-engage the exhaust
// fan the CO2 rule just released; last writer wins, matching field behavior).
func (e *RuleBased) Decide(m thresholds.Model, snap types.SensorSnapshot, current types.ActuatorStateSet) types.Decision {
	d := types.Decision{
		ID:        uuid.New(),
		Timestamp: snap.ObservedAt,
		Phase:     snap.Phase,
		Snapshot:  snap,
		Actions:   types.ActuatorDelta{},
		Enabled:   true,
	}

	t := m.ForPhase(snap.Phase)

	if snap.Phase == types.Spawning {
		e.decideSpawningCO2(&d, t, snap, current)
	} else {
		e.decideFruitingCO2(&d, t, m.Hysteresis, snap, current)
	}

	e.decideTemperature(&d, t, snap, current)
	e.decideHumidity(&d, t, snap, current)

	d.Resulting = d.Actions.Apply(current)
	return d
}

// decideSpawningCO2 wants CO2 to accumulate. This is a one-sided band: the
// exhaust fan runs only while CO2 exceeds max and is released everywhere
// else, including below min. There is no proactive intake control below min.
func (e *RuleBased) decideSpawningCO2(d *types.Decision, t thresholds.PhaseThresholds, snap types.SensorSnapshot, current types.ActuatorStateSet) {
	switch {
	case snap.CO2 < t.CO2.Min:
		if current.ExhaustFan {
			act(d, types.ExhaustFan, false, fmt.Sprintf("CO2 %d ppm below %d, stopping exhaust to accumulate", snap.CO2, t.CO2.Min))
		}
	case snap.CO2 > t.CO2.Max:
		if !current.ExhaustFan {
			act(d, types.ExhaustFan, true, fmt.Sprintf("CO2 %d ppm above %d, venting", snap.CO2, t.CO2.Max))
		}
	default:
		if current.ExhaustFan {
			act(d, types.ExhaustFan, false, fmt.Sprintf("CO2 %d ppm optimal, maintaining accumulation", snap.CO2))
		}
	}
}

// decideFruitingCO2 wants fresh-air exchange. Venting engages above max and
// releases below min; inside the band a true hysteresis dead band above the
// optimum triggers gentle venting.
func (e *RuleBased) decideFruitingCO2(d *types.Decision, t thresholds.PhaseThresholds, h thresholds.Hysteresis, snap types.SensorSnapshot, current types.ActuatorStateSet) {
	switch {
	case snap.CO2 > t.CO2.Max:
		if !current.ExhaustFan {
			act(d, types.ExhaustFan, true, fmt.Sprintf("CO2 %d ppm above %d, venting", snap.CO2, t.CO2.Max))
		}
	case snap.CO2 < t.CO2.Min:
		if current.ExhaustFan {
			act(d, types.ExhaustFan, false, fmt.Sprintf("CO2 %d ppm below %d, stopping vent", snap.CO2, t.CO2.Min))
		}
	default:
		if snap.CO2 > t.CO2.Optimal+h.CO2 && !current.ExhaustFan {
			act(d, types.ExhaustFan, true, fmt.Sprintf("CO2 %d ppm past optimal %d + %d, gentle venting", snap.CO2, t.CO2.Optimal, h.CO2))
		}
	}
}

func (e *RuleBased) decideTemperature(d *types.Decision, t thresholds.PhaseThresholds, snap types.SensorSnapshot, current types.ActuatorStateSet) {
	if snap.Temperature > t.Temperature.Max && !current.BlowerFan {
		act(d, types.BlowerFan, true, fmt.Sprintf("temperature %.1f°C above %.1f, cooling with blower", snap.Temperature, t.Temperature.Max))
	} else if snap.Temperature < t.Temperature.Min && current.BlowerFan {
		act(d, types.BlowerFan, false, fmt.Sprintf("temperature %.1f°C below %.1f, stopping blower", snap.Temperature, t.Temperature.Min))
	}
}

// decideHumidity runs last. In fruiting, humidity above max also forces the
// exhaust fan on to pull moist air out. The fan check runs against the
// decision's in-progress result, so it overwrites a release the CO2 rule
// emitted earlier in the same decision: last writer wins.
func (e *RuleBased) decideHumidity(d *types.Decision, t thresholds.PhaseThresholds, snap types.SensorSnapshot, current types.ActuatorStateSet) {
	if snap.Humidity < t.Humidity.Min {
		if !current.Humidifier {
			act(d, types.Humidifier, true, fmt.Sprintf("humidity %.1f%% below %.1f, humidifying", snap.Humidity, t.Humidity.Min))
		}
		return
	}

	if snap.Humidity > t.Humidity.Max {
		if current.Humidifier {
			act(d, types.Humidifier, false, fmt.Sprintf("humidity %.1f%% above %.1f, stopping humidifier", snap.Humidity, t.Humidity.Max))
		}
		pending := d.Actions.Apply(current)
		if snap.Phase == types.Fruiting && !pending.ExhaustFan {
			act(d, types.ExhaustFan, true, fmt.Sprintf("humidity %.1f%% above %.1f, venting moist air", snap.Humidity, t.Humidity.Max))
		}
	}
}
