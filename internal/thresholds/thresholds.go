// Package thresholds holds the phase-specific set-point configuration for the
// chamber: min/optimal/max per environmental variable plus the hysteresis
// bands. A Model is immutable for the duration of a control cycle; reloads
// swap the whole value between cycles, never mid-decision.
package thresholds

import (
	"encoding/json"
	"os"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/log"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/types"
)

// CO2Band is the CO2 set-point band in ppm.
type CO2Band struct {
	Min     int `json:"min"`
	Optimal int `json:"optimal"`
	Max     int `json:"max"`
}

// Range is a simple min/max band for temperature (°C) or humidity (%RH).
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// PhaseThresholds groups the set points for one cultivation phase.
type PhaseThresholds struct {
	CO2         CO2Band `json:"co2"`
	Temperature Range   `json:"temperature"`
	Humidity    Range   `json:"humidity"`
}

// Hysteresis holds the per-variable buffer zones used to keep actuators from
// toggling rapidly around a threshold.
type Hysteresis struct {
	CO2         int     `json:"co2"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// Model is the full threshold configuration for both phases.
type Model struct {
	Spawning   PhaseThresholds `json:"spawning"`
	Fruiting   PhaseThresholds `json:"fruiting"`
	Hysteresis Hysteresis      `json:"hysteresis"`
}

// Defaults returns the stock set points for a mushroom chamber. Spawning
// wants CO2 accumulation from mycelium respiration; fruiting wants fresh air.
func Defaults() Model {
	return Model{
		Spawning: PhaseThresholds{
			CO2:         CO2Band{Min: 10000, Optimal: 12500, Max: 20000},
			Temperature: Range{Min: 21.0, Max: 27.0},
			Humidity:    Range{Min: 85.0, Max: 95.0},
		},
		Fruiting: PhaseThresholds{
			CO2:         CO2Band{Min: 300, Optimal: 600, Max: 1000},
			Temperature: Range{Min: 18.0, Max: 24.0},
			Humidity:    Range{Min: 85.0, Max: 95.0},
		},
		Hysteresis: Hysteresis{CO2: 500, Temperature: 1.0, Humidity: 3.0},
	}
}

// Load returns the defaults overlaid with the JSON override file at path.
// A missing file falls back silently to the defaults; a corrupt file falls
// back with a single logged warning. Values are not range-checked.
func Load(path string) Model {
	m := Defaults()
	if path == "" {
		return m
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("could not read threshold overrides %s: %v, using defaults", path, err)
		}
		return m
	}

	var overrides map[string]interface{}
	if err := json.Unmarshal(raw, &overrides); err != nil {
		log.Warnf("could not parse threshold overrides %s: %v, using defaults", path, err)
		return m
	}

	return m.Merge(overrides)
}

// Merge overlays a partial override map onto the model and returns the
// result. Unknown keys are logged and ignored, never an error.
func (m Model) Merge(overrides map[string]interface{}) Model {
	for key, val := range overrides {
		switch key {
		case "spawning":
			m.Spawning = mergePhase(m.Spawning, key, val)
		case "fruiting":
			m.Fruiting = mergePhase(m.Fruiting, key, val)
		case "hysteresis":
			m.Hysteresis = mergeHysteresis(m.Hysteresis, val)
		default:
			log.Warnf("ignoring unknown threshold key %q", key)
		}
	}
	return m
}

func mergePhase(p PhaseThresholds, phase string, val interface{}) PhaseThresholds {
	section, ok := val.(map[string]interface{})
	if !ok {
		log.Warnf("ignoring threshold section %q: expected an object", phase)
		return p
	}

	for key, v := range section {
		fields, ok := v.(map[string]interface{})
		if !ok {
			log.Warnf("ignoring threshold key %s.%s: expected an object", phase, key)
			continue
		}
		switch key {
		case "co2":
			p.CO2 = mergeCO2(p.CO2, phase, fields)
		case "temperature":
			p.Temperature = mergeRange(p.Temperature, phase+".temperature", fields)
		case "humidity":
			p.Humidity = mergeRange(p.Humidity, phase+".humidity", fields)
		default:
			log.Warnf("ignoring unknown threshold key %s.%s", phase, key)
		}
	}
	return p
}

func mergeCO2(b CO2Band, phase string, fields map[string]interface{}) CO2Band {
	for key, v := range fields {
		n, ok := v.(float64)
		if !ok {
			log.Warnf("ignoring non-numeric threshold %s.co2.%s", phase, key)
			continue
		}
		switch key {
		case "min":
			b.Min = int(n)
		case "optimal":
			b.Optimal = int(n)
		case "max":
			b.Max = int(n)
		default:
			log.Warnf("ignoring unknown threshold key %s.co2.%s", phase, key)
		}
	}
	return b
}

func mergeRange(r Range, prefix string, fields map[string]interface{}) Range {
	for key, v := range fields {
		n, ok := v.(float64)
		if !ok {
			log.Warnf("ignoring non-numeric threshold %s.%s", prefix, key)
			continue
		}
		switch key {
		case "min":
			r.Min = n
		case "max":
			r.Max = n
		default:
			log.Warnf("ignoring unknown threshold key %s.%s", prefix, key)
		}
	}
	return r
}

func mergeHysteresis(h Hysteresis, val interface{}) Hysteresis {
	fields, ok := val.(map[string]interface{})
	if !ok {
		log.Warnf("ignoring threshold section \"hysteresis\": expected an object")
		return h
	}

	for key, v := range fields {
		n, ok := v.(float64)
		if !ok {
			log.Warnf("ignoring non-numeric threshold hysteresis.%s", key)
			continue
		}
		switch key {
		case "co2":
			h.CO2 = int(n)
		case "temperature":
			h.Temperature = n
		case "humidity":
			h.Humidity = n
		default:
			log.Warnf("ignoring unknown threshold key hysteresis.%s", key)
		}
	}
	return h
}

// ForPhase returns the set points that apply to the given phase.
func (m Model) ForPhase(p types.Phase) PhaseThresholds {
	if p == types.Spawning {
		return m.Spawning
	}
	return m.Fruiting
}
