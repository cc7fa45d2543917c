// Package controlloop runs the periodic decision cycle: pull the latest
// sensor snapshot, ask the decision engine for actuator changes, apply them
// through the coordinator and record the decision in the audit trail.
package controlloop

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/actuators"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/audit"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/engine"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/sensors"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/storage"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/thresholds"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/types"
)

// State is the loop's lifecycle state.
type State int

const (
	Stopped State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// Publisher receives audit events from the loop, fire-and-forget.
type Publisher interface {
	Publish(storage.Event)
}

// Loop is the periodic scheduler tying the sensor, decision and actuation
// stages together.
type Loop struct {
	engine      engine.Engine
	coordinator *actuators.Coordinator
	slot        *sensors.LatestSlot
	auditLog    *audit.Log
	publisher   Publisher
	interval    time.Duration
	logger      *zap.SugaredLogger

	mu            sync.Mutex
	state         State
	automation    bool
	model         thresholds.Model
	phaseOverride *types.Phase
	skippedTicks  uint64

	stop chan struct{}
	done chan struct{}
}

// New assembles a loop. Automation starts enabled; the loop itself starts
// Stopped until Start is called.
func New(eng engine.Engine, coord *actuators.Coordinator, slot *sensors.LatestSlot, auditLog *audit.Log, pub Publisher, model thresholds.Model, interval time.Duration, logger *zap.SugaredLogger) *Loop {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Loop{
		engine:      eng,
		coordinator: coord,
		slot:        slot,
		auditLog:    auditLog,
		publisher:   pub,
		interval:    interval,
		logger:      logger,
		automation:  true,
		model:       model,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the tick goroutine. Returns immediately; the loop runs
// until Stop is called or the context is cancelled. Starting a loop that is
// not Stopped is a no-op.
func (l *Loop) Start(ctx context.Context, wg *sync.WaitGroup) {
	l.mu.Lock()
	if l.state != Stopped {
		l.mu.Unlock()
		l.logger.Warnf("control loop start requested while %s, ignoring", l.state)
		return
	}
	l.state = Running
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	l.mu.Unlock()

	l.logger.Infof("control loop started, tick interval %v", l.interval)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(l.done)

		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				l.shutdown()
				return
			case <-l.stop:
				l.shutdown()
				return
			case <-ticker.C:
				l.tick()
			}
		}
	}()
}

// Stop requests a cooperative shutdown and blocks until the in-flight tick
// has finished and every actuator is off.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.state != Running {
		l.mu.Unlock()
		return
	}
	l.state = Stopping
	close(l.stop)
	l.mu.Unlock()

	<-l.done
}

// shutdown releases the chamber: all relays off, unconditionally.
func (l *Loop) shutdown() {
	l.logger.Info("control loop stopping, releasing actuators")
	l.coordinator.AllOff()

	l.mu.Lock()
	l.state = Stopped
	l.mu.Unlock()
	l.logger.Info("control loop stopped")
}

// tick runs one decision cycle. Nothing in here is fatal: a missing
// snapshot, disabled automation or a rejected delta all degrade to skipping
// or to a failed decision in the audit trail.
func (l *Loop) tick() {
	snap, ok := l.slot.Latest()
	if !ok {
		// No reading yet: skip entirely, no decision, no audit entry.
		l.mu.Lock()
		l.skippedTicks++
		l.mu.Unlock()
		l.logger.Debug("no sensor snapshot available, skipping tick")
		return
	}

	l.mu.Lock()
	enabled := l.automation
	model := l.model
	if l.phaseOverride != nil {
		snap.Phase = *l.phaseOverride
	}
	l.mu.Unlock()

	if !enabled {
		// Disabled automation still leaves an audit trail: an empty-action
		// decision marked not-enabled, with nothing applied.
		d := types.Decision{
			ID:        uuid.New(),
			Timestamp: snap.ObservedAt,
			Phase:     snap.Phase,
			Snapshot:  snap,
			Resulting: l.coordinator.State(),
		}
		l.auditLog.Append(d)
		if l.publisher != nil {
			l.publisher.Publish(storage.Event{Decision: &d})
		}
		l.logger.Debug("automation disabled, no actions taken")
		return
	}

	// Converge any relay whose last write failed before deciding anew.
	l.coordinator.RetryFailed()

	current := l.coordinator.State()
	decision := l.engine.Decide(model, snap, current)

	if len(decision.Actions) > 0 {
		applied, err := l.coordinator.Apply(decision.Actions, actuators.Automation)
		if !applied {
			decision.Failed = true
			decision.Err = err.Error()
			decision.Resulting = current
		}
	}

	l.auditLog.Append(decision)
	if l.publisher != nil {
		l.publisher.Publish(storage.Event{Decision: &decision})
		if len(decision.Actions) > 0 && !decision.Failed {
			l.publisher.Publish(storage.Event{Actuator: &storage.ActuatorEvent{
				State:       decision.Resulting,
				Phase:       decision.Phase,
				TriggeredBy: "automation",
				At:          time.Now(),
			}})
		}
	}

	if len(decision.Actions) > 0 {
		l.logger.Infow("decision applied",
			"phase", decision.Phase.String(),
			"co2", snap.CO2,
			"temperature", snap.Temperature,
			"humidity", snap.Humidity,
			"actions", decision.Actions,
			"reasoning", decision.Reasoning)
	}
}

// State reports the loop's lifecycle state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// AutomationEnabled reports whether decisions are being made and applied.
func (l *Loop) AutomationEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.automation
}

// SetAutomation enables or disables the decision stage. Disabling leaves the
// current actuator states in place for manual control.
func (l *Loop) SetAutomation(enabled bool) {
	l.mu.Lock()
	changed := l.automation != enabled
	l.automation = enabled
	l.mu.Unlock()
	if changed {
		l.logger.Infof("automation %s", map[bool]string{true: "enabled", false: "disabled"}[enabled])
	}
}

// SetPhase pins the cultivation phase, overriding whatever the sensor feed
// reports, until the next explicit phase command. The new phase takes effect
// on the next tick; thresholds are never blended mid-decision.
func (l *Loop) SetPhase(p types.Phase) {
	l.mu.Lock()
	l.phaseOverride = &p
	l.mu.Unlock()
	l.logger.Infof("phase pinned to %s", p)
}

// ClearPhaseOverride returns phase control to the sensor feed.
func (l *Loop) ClearPhaseOverride() {
	l.mu.Lock()
	l.phaseOverride = nil
	l.mu.Unlock()
	l.logger.Info("phase override cleared, following sensor feed")
}

// SetThresholds hot-swaps the threshold model. The swap happens between
// cycles: an in-flight decision keeps the model it started with.
func (l *Loop) SetThresholds(m thresholds.Model) {
	l.mu.Lock()
	l.model = m
	l.mu.Unlock()
	l.logger.Info("threshold model updated")
}

// Thresholds returns the model the next tick will use.
func (l *Loop) Thresholds() thresholds.Model {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.model
}

// SkippedTicks reports how many ticks were skipped for lack of a snapshot.
func (l *Loop) SkippedTicks() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.skippedTicks
}
