// Package actuators owns the authoritative actuator state for the chamber
// and the hardware relays that realize it. All mutations, whether from the
// automation loop or from manual commands, pass through the Coordinator's
// single mutex-guarded entry point.
package actuators

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/types"
)

// Mode arbitrates between the automation loop and manual commands.
type Mode int

const (
	// Auto applies decision-engine deltas and rejects manual commands.
	Auto Mode = iota
	// Manual applies external commands and rejects the automation loop.
	Manual
)

func (m Mode) String() string {
	if m == Manual {
		return "manual"
	}
	return "auto"
}

// Source identifies who is asking for an actuator change.
type Source int

const (
	// Automation marks deltas produced by the decision engine.
	Automation Source = iota
	// Operator marks explicit external commands.
	Operator
)

var (
	// ErrManualMode is returned when the automation loop tries to actuate
	// while an operator holds manual control.
	ErrManualMode = errors.New("manual mode active, automation delta not applied")
	// ErrAutomationActive is returned when a manual command arrives while
	// the chamber is under automation control.
	ErrAutomationActive = errors.New("automation active, switch to manual mode first")
)

// Coordinator owns the single source of truth for what is commanded and
// drives the relay bank to match it. Hardware is write-only: state is never
// read back from the pins.
type Coordinator struct {
	mu     sync.Mutex
	state  types.ActuatorStateSet
	mode   Mode
	bank   RelayBank
	dirty  map[types.Actuator]bool
	logger *zap.SugaredLogger
}

// NewCoordinator returns a coordinator in Auto mode with all actuators off.
// The relay bank is not written until the first Apply or AllOff.
func NewCoordinator(bank RelayBank, logger *zap.SugaredLogger) *Coordinator {
	return &Coordinator{
		bank:   bank,
		dirty:  make(map[types.Actuator]bool),
		logger: logger,
	}
}

// Apply drives the changed actuators in the delta to hardware and updates
// the authoritative state. A delta matching current state is a no-op that
// still reports success. Relay write failures are logged and the intended
// state is kept, so the next applying tick retries; the loop never crashes
// over a pin.
func (c *Coordinator) Apply(delta types.ActuatorDelta, src Source) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if src == Automation && c.mode == Manual {
		c.logger.Debugw("dropping automation delta", "reason", "manual mode active")
		return false, ErrManualMode
	}
	if src == Operator && c.mode == Auto {
		c.logger.Warnw("rejecting manual command", "reason", "automation active")
		return false, ErrAutomationActive
	}

	for _, a := range types.Actuators {
		on, changed := delta[a]
		if !changed {
			continue
		}
		c.state = c.state.Set(a, on)
		if err := c.bank.Set(a, on); err != nil {
			c.logger.Errorw("relay write failed", "actuator", a, "want", on, "error", err)
			c.dirty[a] = true
			continue
		}
		delete(c.dirty, a)
		c.logger.Infow("actuator changed", "actuator", a, "on", on, "source", srcName(src))
	}
	return true, nil
}

// RetryFailed re-drives any relay whose last write failed toward the
// intended state. The control loop calls this at the top of every tick so a
// transient pin failure heals without operator involvement.
func (c *Coordinator) RetryFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for a := range c.dirty {
		want := c.state.Get(a)
		if err := c.bank.Set(a, want); err != nil {
			c.logger.Errorw("relay retry failed", "actuator", a, "want", want, "error", err)
			continue
		}
		delete(c.dirty, a)
		c.logger.Infow("relay retry succeeded", "actuator", a, "on", want)
	}
}

// SetActuator is the manual-override path for a single actuator.
func (c *Coordinator) SetActuator(a types.Actuator, on bool) error {
	_, err := c.Apply(types.ActuatorDelta{a: on}, Operator)
	return err
}

// State returns a copy of the commanded actuator states.
func (c *Coordinator) State() types.ActuatorStateSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Mode returns the current arbitration mode.
func (c *Coordinator) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetMode switches between automation and manual control.
func (c *Coordinator) SetMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != m {
		c.logger.Infof("actuator control mode changed to %s", m)
	}
	c.mode = m
}

// AllOff unconditionally drives every actuator off, regardless of mode.
// Called on shutdown to guarantee the chamber is released safely.
func (c *Coordinator) AllOff() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range types.Actuators {
		c.state = c.state.Set(a, false)
		if err := c.bank.Set(a, false); err != nil {
			c.logger.Errorw("relay write failed during all-off", "actuator", a, "error", err)
			c.dirty[a] = true
			continue
		}
		delete(c.dirty, a)
	}
	c.logger.Info("all actuators driven off")
}

// Close releases the hardware. AllOff must have been called first.
func (c *Coordinator) Close() error {
	return c.bank.Close()
}

func srcName(s Source) string {
	if s == Operator {
		return "operator"
	}
	return "automation"
}
