package wiimote

// mainButtons lists the controller buttons in channel order (offsets 0..10).
var mainButtons = [...]ButtonMask{
	OffsetA:     ButtonA,
	OffsetB:     ButtonB,
	OffsetUp:    ButtonUp,
	OffsetDown:  ButtonDown,
	OffsetLeft:  ButtonLeft,
	OffsetRight: ButtonRight,
	OffsetOne:   ButtonOne,
	OffsetTwo:   ButtonTwo,
	OffsetMinus: ButtonMinus,
	OffsetPlus:  ButtonPlus,
	OffsetHome:  ButtonHome,
}

// MapSlot writes one slot's entries into the channel arrays and returns the
// tracker sends it produced.
//
// Every entry in the slot's button and analog range is assigned, whether or
// not the slot is ready, so callers can hand in reused arrays.
func MapSlot(slot DeviceSlot, buttons *ButtonChannels, analog *AnalogChannels) []TrackerSend {
	i := slot.Index
	clearSlot(i, buttons, analog)
	if !slot.Ready {
		return nil
	}

	sample := slot.sample
	var sends []TrackerSend

	for offset, mask := range mainButtons {
		buttons[ButtonIndex(i, offset)] = buttonState(sample.Buttons.Has(mask))
	}

	if sample.AccelerometerActive {
		sends = append(sends, TrackerSend{
			Sensor:      MainTracker(i),
			Orientation: QuaternionFromEuler(sample.Orientation),
		})
	}

	if sample.IRActive {
		analog[AnalogIndex(i, OffsetIRX)] = sample.IR.X
		analog[AnalogIndex(i, OffsetIRY)] = sample.IR.Y
		analog[AnalogIndex(i, OffsetIRZ)] = sample.IR.Z
	}

	switch ext := sample.Extension.(type) {
	case Nunchuk:
		sends = append(sends, mapNunchuk(i, ext.NunchukState, buttons, analog))
	case MotionPlusNunchuk:
		sends = append(sends, mapNunchuk(i, ext.NunchukState, buttons, analog))
	case NoExtension, nil:
		// C/Z and joystick stay at their cleared defaults.
	}

	return sends
}

// mapNunchuk writes the extension entries for slot i and returns the
// extension tracker send.
func mapNunchuk(i int, nc NunchukState, buttons *ButtonChannels, analog *AnalogChannels) TrackerSend {
	buttons[ButtonIndex(i, OffsetC)] = buttonState(nc.Buttons.Has(NunchukButtonC))
	buttons[ButtonIndex(i, OffsetZ)] = buttonState(nc.Buttons.Has(NunchukButtonZ))
	analog[AnalogIndex(i, OffsetJoystickX)] = nc.Joystick.X
	analog[AnalogIndex(i, OffsetJoystickY)] = nc.Joystick.Y

	q := IdentityQuaternion()
	if nc.OrientationValid {
		q = QuaternionFromEuler(nc.Orientation)
	}
	return TrackerSend{Sensor: ExtensionTracker(i), Orientation: q}
}

// clearSlot resets slot i's button and analog ranges to not-pressed and zero.
func clearSlot(i int, buttons *ButtonChannels, analog *AnalogChannels) {
	for offset := 0; offset < ButtonsPerSlot; offset++ {
		buttons[ButtonIndex(i, offset)] = ButtonNotPressed
	}
	for offset := 0; offset < AnalogPerSlot; offset++ {
		analog[AnalogIndex(i, offset)] = 0
	}
}
