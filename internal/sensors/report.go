package sensors

import (
	"fmt"
	"time"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/types"
)

// Report is the wire payload produced by the sensor bridge, one JSON object
// per reading. Values arrive already converted to engineering units.
type Report struct {
	CO2         int     `json:"co2"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Mode        string  `json:"mode"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

// Snapshot converts a wire report into a snapshot, stamping it with now when
// the bridge did not supply a timestamp.
func (r Report) Snapshot(now time.Time) (types.SensorSnapshot, error) {
	phase, err := types.ParsePhase(r.Mode)
	if err != nil {
		return types.SensorSnapshot{}, fmt.Errorf("bad sensor report: %w", err)
	}

	observed := now
	if r.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, r.Timestamp); err == nil {
			observed = ts
		}
	}

	return types.SensorSnapshot{
		CO2:         r.CO2,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Phase:       phase,
		ObservedAt:  observed,
	}, nil
}
