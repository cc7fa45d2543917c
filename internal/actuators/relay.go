package actuators

import (
	"fmt"
	"sync"

	"gobot.io/x/gobot/v2/drivers/gpio"
	"gobot.io/x/gobot/v2/platforms/raspi"

	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/log"
	"github.com/MASH-Mushroom-Automation/MASH-IoT-Device-sub000/internal/types"
)

// RelayBank drives the physical relay channels. Implementations take logical
// states: true means the device is energized. Electrical polarity is an
// implementation detail and must never leak to callers.
type RelayBank interface {
	Set(a types.Actuator, on bool) error
	Close() error
}

// PinMap assigns a GPIO pin (gobot raspi numbering) to each actuator.
type PinMap map[types.Actuator]string

// DefaultPins matches the reference chamber wiring.
var DefaultPins = PinMap{
	types.ExhaustFan: "16",
	types.BlowerFan:  "18",
	types.Humidifier: "22",
	types.LEDLights:  "36",
}

// GobotBank drives relay boards through gobot's raspi adaptor. The boards
// are active-low: driving the pin low energizes the relay, so logical ON maps
// to the driver's Off() and vice versa.
type GobotBank struct {
	adaptor *raspi.Adaptor
	relays  map[types.Actuator]*gpio.RelayDriver
}

// NewGobotBank connects to the Pi's GPIO and prepares a relay driver per
// actuator. Failure here is fatal to startup: without hardware there is
// nothing for the control loop to do.
func NewGobotBank(pins PinMap) (*GobotBank, error) {
	if pins == nil {
		pins = DefaultPins
	}

	adaptor := raspi.NewAdaptor()
	if err := adaptor.Connect(); err != nil {
		return nil, fmt.Errorf("could not connect to GPIO adaptor: %w", err)
	}

	b := &GobotBank{
		adaptor: adaptor,
		relays:  make(map[types.Actuator]*gpio.RelayDriver, len(pins)),
	}
	for a, pin := range pins {
		relay := gpio.NewRelayDriver(adaptor, pin)
		if err := relay.Start(); err != nil {
			adaptor.Finalize()
			return nil, fmt.Errorf("could not start relay driver for %s on pin %s: %w", a, pin, err)
		}
		b.relays[a] = relay
		log.Debugf("relay %s mapped to GPIO pin %s", a, pin)
	}
	return b, nil
}

// Set drives one relay to the requested logical state, inverting for the
// active-low boards.
func (b *GobotBank) Set(a types.Actuator, on bool) error {
	relay, ok := b.relays[a]
	if !ok {
		return fmt.Errorf("no relay mapped for actuator %s", a)
	}
	// Active-low: logical ON is electrical LOW.
	if on {
		return relay.Off()
	}
	return relay.On()
}

// Close releases the GPIO adaptor. Callers are expected to have driven all
// relays off first.
func (b *GobotBank) Close() error {
	return b.adaptor.Finalize()
}

// SimBank is an in-memory relay bank for development and tests. It records
// logical states and can be told to fail writes for specific actuators.
type SimBank struct {
	mu       sync.Mutex
	states   map[types.Actuator]bool
	failures map[types.Actuator]error
	writes   int
}

// NewSimBank returns a simulated relay bank with everything off.
func NewSimBank() *SimBank {
	return &SimBank{
		states:   make(map[types.Actuator]bool),
		failures: make(map[types.Actuator]error),
	}
}

func (b *SimBank) Set(a types.Actuator, on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failures[a]; err != nil {
		return err
	}
	b.states[a] = on
	b.writes++
	return nil
}

func (b *SimBank) Close() error { return nil }

// State reports the last successfully written logical state.
func (b *SimBank) State(a types.Actuator) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.states[a]
}

// Writes reports how many successful relay writes have happened.
func (b *SimBank) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

// FailWith makes subsequent writes to an actuator return err; pass nil to
// heal it.
func (b *SimBank) FailWith(a types.Actuator, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, a)
		return
	}
	b.failures[a] = err
}
