package wiimote

import (
	"context"
	"math"
	"sync"
	"time"
)

// SimSourceConfig configures a simulated controller source.
type SimSourceConfig struct {
	// Connected is the number of simulated controllers, filling slots 0..n-1.
	Connected int

	// NunchukSlots lists the slots that report a nunchuk.
	NunchukSlots []int

	// Now is the clock driving the simulated motion. Defaults to time.Now.
	Now func() time.Time
}

// SimSource produces synthetic controller samples for development and
// demos. Orientation sweeps smoothly over time, buttons cycle once per
// second and the IR cursor moves in a circle.
//
// Thread Safety: All methods are safe for concurrent use.
type SimSource struct {
	now   func() time.Time
	start time.Time

	mu      sync.Mutex
	devices [SlotCount]*simDevice
	polls   uint64
	leds    [SlotCount]LED
	motion  [SlotCount]bool
}

type simDevice struct {
	src       *SimSource
	index     int
	connected bool
	nunchuk   bool

	sample RawSample
	ready  bool
}

// NewSimSource creates a simulated source.
func NewSimSource(cfg SimSourceConfig) *SimSource {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	s := &SimSource{now: now, start: now()}

	nunchuk := make(map[int]bool, len(cfg.NunchukSlots))
	for _, i := range cfg.NunchukSlots {
		nunchuk[i] = true
	}
	for i := range s.devices {
		s.devices[i] = &simDevice{
			src:       s,
			index:     i,
			connected: i < cfg.Connected,
			nunchuk:   nunchuk[i],
		}
	}
	return s
}

// Slots returns the slot array backed by this source.
func (s *SimSource) Slots() Slots {
	var slots Slots
	for i, d := range s.devices {
		slots[i] = d
	}
	return slots
}

// SetConnected changes the connection state of a simulated slot.
func (s *SimSource) SetConnected(slot int, connected bool) error {
	if slot < 0 || slot >= SlotCount {
		return ErrInvalidSlot
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.devices[slot]
	d.connected = connected
	if !connected {
		d.ready = false
	}
	return nil
}

// Stop disconnects every simulated slot.
func (s *SimSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		d.connected = false
		d.ready = false
	}
	return nil
}

// Poll implements Poller. Every connected slot gets a fresh sample.
func (s *SimSource) Poll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now().Sub(s.start).Seconds()
	s.polls++
	for _, d := range s.devices {
		if !d.connected {
			d.ready = false
			continue
		}
		d.sample = simulateSample(d.index, t, d.nunchuk)
		d.ready = true
	}
	return nil
}

// SetLEDs implements Initializer.
func (s *SimSource) SetLEDs(_ context.Context, slot int, leds LED) error {
	if slot < 0 || slot >= SlotCount {
		return ErrInvalidSlot
	}
	s.mu.Lock()
	s.leds[slot] = leds
	s.mu.Unlock()
	return nil
}

// SetMotionSensing implements Initializer.
func (s *SimSource) SetMotionSensing(_ context.Context, slot int, enabled bool) error {
	if slot < 0 || slot >= SlotCount {
		return ErrInvalidSlot
	}
	s.mu.Lock()
	s.motion[slot] = enabled
	s.mu.Unlock()
	return nil
}

// Settings returns the LEDs and motion sensing flag applied to a slot.
func (s *SimSource) Settings(slot int) (LED, bool) {
	if slot < 0 || slot >= SlotCount {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leds[slot], s.motion[slot]
}

// Polls returns the number of completed polls.
func (s *SimSource) Polls() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

func (d *simDevice) IsConnected() bool {
	d.src.mu.Lock()
	defer d.src.mu.Unlock()
	return d.connected
}

func (d *simDevice) Event() (RawSample, bool) {
	d.src.mu.Lock()
	defer d.src.mu.Unlock()
	return d.sample, d.ready
}

// simulateSample builds the sample for slot at t seconds since start.
// Each slot is phase shifted so controllers do not move in lockstep.
func simulateSample(slot int, t float64, nunchuk bool) RawSample {
	phase := t + float64(slot)*0.5

	sample := RawSample{
		AccelerometerActive: true,
		Orientation: EulerAngles{
			Roll:  20 * math.Sin(phase),
			Pitch: 15 * math.Cos(phase*0.7),
			Yaw:   math.Mod(phase*30, 360) - 180,
		},
		IRActive: true,
		IR: Vec3{
			X: 512 + 300*math.Cos(phase),
			Y: 384 + 200*math.Sin(phase),
			Z: 1,
		},
		Extension: NoExtension{},
	}

	buttonBits := []ButtonMask{ButtonA, ButtonB, ButtonOne, ButtonTwo}
	step := int(math.Abs(phase))
	sample.Buttons = buttonBits[step%len(buttonBits)]

	if nunchuk {
		nc := NunchukState{
			Joystick: Joystick{
				X: 128 + 100*math.Sin(phase*1.3),
				Y: 128 + 100*math.Cos(phase*1.3),
			},
			OrientationValid: true,
			Orientation: EulerAngles{
				Roll:  10 * math.Sin(phase*0.9),
				Pitch: 25 * math.Cos(phase*0.4),
			},
		}
		if step%2 == 0 {
			nc.Buttons = NunchukButtonC
		} else {
			nc.Buttons = NunchukButtonZ
		}
		sample.Extension = Nunchuk{NunchukState: nc}
	}
	return sample
}
