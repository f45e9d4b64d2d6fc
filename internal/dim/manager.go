package dim

import (
	"sync/atomic"

	"github.com/sweeney/phase-dimmer/internal/hw"
)

// Manager lifecycle states. Transitions are one-directional:
// Uninitialized → Armed → Running → Stopped.
const (
	stateUninitialized uint32 = iota
	stateArmed
	stateRunning
	stateStopped
)

// PowerUpdate asks the manager to change one device's power percentage.
// It exists only in flight on the update channel.
type PowerUpdate struct {
	DeviceID uint8
	Percent  uint8
}

// updateQueueCap bounds the power update channel. Producers get
// ErrQueueFull instead of blocking when it fills up.
const updateQueueCap = 64

// faultQueueCap bounds the fault channel. The tick pass drops (and counts)
// faults when it is full rather than blocking.
const faultQueueCap = 32

// Manager owns the device collection, the tick counter and the power update
// channel, and wires them into the three execution contexts described in
// device.go: the tick pass (TickPass, interrupt context), the zero-crossing
// monitor (WaitZeroCrossing, one dedicated goroutine) and any number of
// power update producers (Sender).
type Manager struct {
	cfg Config
	zc  hw.ZeroCrossing

	// devices is append-only until Start and immutable afterwards, so
	// the tick pass can range over it without a lock.
	devices []*Device

	state atomic.Uint32
	tick  atomic.Uint32

	updates chan PowerUpdate
	faults  chan error

	zeroCrossings atomic.Uint64
	faultsDropped atomic.Uint64
}

// NewManager creates a manager in the Uninitialized state. cfg is fixed for
// the manager's lifetime.
func NewManager(cfg Config, zc hw.ZeroCrossing) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:     cfg.withDefaults(),
		zc:      zc,
		updates: make(chan PowerUpdate, updateQueueCap),
		faults:  make(chan error, faultQueueCap),
	}, nil
}

// Config returns the manager's timing configuration.
func (m *Manager) Config() Config { return m.cfg }

// Register adds a device for the given output. Devices start at 0% power.
// Registration is only possible before Start; the first registration arms
// the manager. Fails with ErrDuplicateID if the id is already present.
func (m *Manager) Register(id uint8, out hw.Output) error {
	switch m.state.Load() {
	case stateUninitialized, stateArmed:
	default:
		return ErrNotArmed
	}
	for _, d := range m.devices {
		if d.id == id {
			return ErrDuplicateID
		}
	}
	m.devices = append(m.devices, newDevice(id, out, m.cfg.TicksPerHalfCycle))
	m.state.Store(stateArmed)
	return nil
}

// Start transitions the manager from Armed to Running. After Start the
// device collection is frozen and TickPass begins acting on outputs.
func (m *Manager) Start() error {
	if !m.state.CompareAndSwap(stateArmed, stateRunning) {
		return ErrNotArmed
	}
	return nil
}

// Stop transitions the manager to Stopped and drives every output low.
// The caller must disarm the tick source (stop invoking TickPass) before
// calling Stop; the state flip additionally makes any late pass a no-op, so
// no output is touched by the scheduler after teardown begins. A stopped
// manager cannot be re-armed.
func (m *Manager) Stop() error {
	if !m.state.CompareAndSwap(stateRunning, stateStopped) {
		return ErrNotRunning
	}
	var firstErr error
	for _, d := range m.devices {
		if err := d.Apply(Low); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// TickPass is the interrupt entry point, invoked by the platform timer at
// Config.TickInterval. It observes the current tick, advances the counter
// with wraparound, and drives every device's output for the observed tick.
// It never allocates, locks, or blocks; one device's failure never stops
// the rest of the pass.
func (m *Manager) TickPass() {
	if m.state.Load() != stateRunning {
		return
	}

	t := m.tick.Load()
	next := t + 1
	if next >= uint32(m.cfg.TicksPerHalfCycle) {
		// Wraparound fallback for a missed zero crossing; normally the
		// monitor resets the counter first.
		next = 0
	}
	// If a zero-crossing reset lands between the load and here, the CAS
	// fails and the reset wins. The one-tick ambiguity is within the
	// system's timing tolerance.
	m.tick.CompareAndSwap(t, next)

	for _, d := range m.devices {
		if err := d.Apply(d.Evaluate(t)); err != nil {
			m.reportFault(err)
		}
	}
}

// Tick returns the current tick counter value.
func (m *Manager) Tick() uint32 { return m.tick.Load() }

// WaitZeroCrossing performs one monitor pass: drain pending power updates,
// block until the next rising edge, then rebase the tick counter to zero.
// Intended to be called in a loop by one dedicated goroutine. On wait
// failure the error is returned without resetting the counter — the tick
// clock keeps free-running and wraps — and the caller decides whether to
// retry (recommended) or escalate.
func (m *Manager) WaitZeroCrossing() error {
	if m.state.Load() != stateRunning {
		return ErrNotRunning
	}

	m.drainUpdates()

	if err := m.zc.WaitForRisingEdge(); err != nil {
		return &ZeroCrossingError{Err: err}
	}

	m.tick.Store(0)
	m.zeroCrossings.Add(1)
	return nil
}

// drainUpdates applies every pending power update. A bad update (unknown
// device) is reported as a fault and dropped without affecting the rest of
// the queue.
func (m *Manager) drainUpdates() {
	for {
		select {
		case u := <-m.updates:
			if err := m.applyUpdate(u); err != nil {
				m.reportFault(err)
			}
		default:
			return
		}
	}
}

func (m *Manager) applyUpdate(u PowerUpdate) error {
	for _, d := range m.devices {
		if d.id == u.DeviceID {
			return d.SetPower(u.Percent)
		}
	}
	return ErrUnknownDevice
}

// reportFault delivers an error to the fault channel without blocking.
// When the channel is full the fault is counted and dropped.
func (m *Manager) reportFault(err error) {
	select {
	case m.faults <- err:
	default:
		m.faultsDropped.Add(1)
	}
}

// Faults returns the channel carrying errors recorded during tick passes
// and update drains. The daemon is expected to consume it.
func (m *Manager) Faults() <-chan error { return m.faults }

// FaultsDropped returns how many faults were discarded because the fault
// channel was full.
func (m *Manager) FaultsDropped() uint64 { return m.faultsDropped.Load() }

// ZeroCrossings returns how many rising edges have rebased the counter.
func (m *Manager) ZeroCrossings() uint64 { return m.zeroCrossings.Load() }

// Device returns the registered device with the given id, or nil.
func (m *Manager) Device(id uint8) *Device {
	for _, d := range m.devices {
		if d.id == id {
			return d
		}
	}
	return nil
}

// DeviceState is a point-in-time view of one device for status reporting.
type DeviceState struct {
	ID        uint8
	Percent   uint8
	Threshold uint32
}

// DeviceStates snapshots every registered device.
func (m *Manager) DeviceStates() []DeviceState {
	out := make([]DeviceState, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, DeviceState{ID: d.id, Percent: d.Power(), Threshold: d.Threshold()})
	}
	return out
}

// Sender returns a handle for submitting power updates from any goroutine.
func (m *Manager) Sender() Sender {
	return Sender{m: m}
}

// Sender submits power updates to the manager. Safe for concurrent use by
// multiple producers; never used from interrupt context.
type Sender struct {
	m *Manager
}

// Submit validates and enqueues one power update. The percentage is
// validated here so producers get ErrInvalidPower synchronously; unknown
// device ids can only be detected when the manager drains the queue.
func (s Sender) Submit(deviceID, percent uint8) error {
	if percent > 100 {
		return ErrInvalidPower
	}
	switch s.m.state.Load() {
	case stateArmed, stateRunning:
	default:
		return ErrNotRunning
	}
	select {
	case s.m.updates <- PowerUpdate{DeviceID: deviceID, Percent: percent}:
		return nil
	default:
		return ErrQueueFull
	}
}
