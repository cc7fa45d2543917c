// Package storage defines interfaces and implementations for the chamber's
// persistence sinks. Sinks are fire-and-forget: the control loop hands an
// event to the distributor and moves on; sink failures are logged, never
// surfaced as control-loop errors.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/types"
)

// ActuatorEvent records one actuator state transition and who triggered it.
type ActuatorEvent struct {
	State       types.ActuatorStateSet `json:"state"`
	Phase       types.Phase            `json:"phase"`
	TriggeredBy string                 `json:"triggered_by"`
	At          time.Time              `json:"at"`
}

// Event is the union passed to persistence sinks: exactly one field is set.
type Event struct {
	Decision *types.Decision
	Actuator *ActuatorEvent
}

// SinkInterface is an interface that provides a standardized method for
// various persistence backends
type SinkInterface interface {
	StartSink(context.Context, *sync.WaitGroup) chan<- Event
}
