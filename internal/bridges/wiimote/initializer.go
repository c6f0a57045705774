package wiimote

import (
	"context"
	"errors"
	"fmt"
)

// LED is the controller's player indicator bitfield.
type LED uint8

// Player LEDs.
const (
	LED1 LED = 0x10
	LED2 LED = 0x20
	LED3 LED = 0x40
	LED4 LED = 0x80
)

// slotLEDs maps each slot to the LED lit on its controller.
var slotLEDs = [SlotCount]LED{LED1, LED2, LED3, LED4}

// SlotLED returns the player LED assigned to a slot.
func SlotLED(slot int) LED {
	if slot < 0 || slot >= SlotCount {
		return 0
	}
	return slotLEDs[slot]
}

// Initializer applies per-controller settings at startup. Sources that can
// configure hardware implement it.
type Initializer interface {
	SetLEDs(ctx context.Context, slot int, leds LED) error
	SetMotionSensing(ctx context.Context, slot int, enabled bool) error
}

// InitializeSlots lights the player LED and enables motion sensing on every
// slot. All slots are attempted; failures are joined.
func InitializeSlots(ctx context.Context, c Initializer) error {
	var errs []error
	for slot := 0; slot < SlotCount; slot++ {
		if err := c.SetLEDs(ctx, slot, SlotLED(slot)); err != nil {
			errs = append(errs, fmt.Errorf("slot %d leds: %w", slot, err))
		}
		if err := c.SetMotionSensing(ctx, slot, true); err != nil {
			errs = append(errs, fmt.Errorf("slot %d motion sensing: %w", slot, err))
		}
	}
	return errors.Join(errs...)
}
