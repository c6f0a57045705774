package wiimote

// ButtonMask is the raw controller button bitfield as reported by the
// hardware helper. Bit values follow the controller's core button report.
type ButtonMask uint16

// Controller button bits.
const (
	ButtonTwo   ButtonMask = 0x0001
	ButtonOne   ButtonMask = 0x0002
	ButtonB     ButtonMask = 0x0004
	ButtonA     ButtonMask = 0x0008
	ButtonMinus ButtonMask = 0x0010
	ButtonHome  ButtonMask = 0x0080
	ButtonLeft  ButtonMask = 0x0100
	ButtonRight ButtonMask = 0x0200
	ButtonDown  ButtonMask = 0x0400
	ButtonUp    ButtonMask = 0x0800
	ButtonPlus  ButtonMask = 0x1000
)

// Has reports whether every bit in b is set in m.
func (m ButtonMask) Has(b ButtonMask) bool {
	return m&b == b
}

// NunchukButtons is the raw extension button bitfield.
type NunchukButtons uint8

// Nunchuk button bits.
const (
	NunchukButtonZ NunchukButtons = 0x01
	NunchukButtonC NunchukButtons = 0x02
)

// Has reports whether every bit in b is set in m.
func (m NunchukButtons) Has(b NunchukButtons) bool {
	return m&b == b
}

// Vec3 is a raw three-axis reading.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Joystick is the extension's analog stick position.
type Joystick struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ExtensionType identifies the accessory plugged into a controller.
type ExtensionType uint8

const (
	// ExtensionNone means no accessory is attached.
	ExtensionNone ExtensionType = iota
	// ExtensionNunchuk is a plain nunchuk.
	ExtensionNunchuk
	// ExtensionMotionPlusNunchuk is a nunchuk in MotionPlus passthrough mode.
	ExtensionMotionPlusNunchuk
)

// String returns the wire name of the extension type.
func (t ExtensionType) String() string {
	switch t {
	case ExtensionNunchuk:
		return "nunchuk"
	case ExtensionMotionPlusNunchuk:
		return "motionplus_nunchuk"
	default:
		return "none"
	}
}

// ParseExtensionType converts a wire name back to an ExtensionType.
func ParseExtensionType(s string) (ExtensionType, error) {
	switch s {
	case "", "none":
		return ExtensionNone, nil
	case "nunchuk":
		return ExtensionNunchuk, nil
	case "motionplus_nunchuk":
		return ExtensionMotionPlusNunchuk, nil
	default:
		return ExtensionNone, ErrUnknownExtension
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t ExtensionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ExtensionType) UnmarshalText(text []byte) error {
	parsed, err := ParseExtensionType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Extension is the accessory state attached to a sample. It is a closed set:
// NoExtension, Nunchuk and MotionPlusNunchuk are its only implementations.
type Extension interface {
	Type() ExtensionType
	isExtension()
}

// NoExtension is the payload when nothing is plugged in.
type NoExtension struct{}

// Type implements Extension.
func (NoExtension) Type() ExtensionType { return ExtensionNone }
func (NoExtension) isExtension()        {}

// NunchukState is the payload shared by both nunchuk variants.
type NunchukState struct {
	Buttons  NunchukButtons `json:"buttons"`
	Joystick Joystick       `json:"joystick"`

	// OrientationValid is false when the helper could not report the
	// nunchuk's own orientation. The tracker then carries the identity.
	OrientationValid bool        `json:"orientation_valid"`
	Orientation      EulerAngles `json:"orientation"`
}

// Nunchuk is a plain nunchuk extension.
type Nunchuk struct {
	NunchukState
}

// Type implements Extension.
func (Nunchuk) Type() ExtensionType { return ExtensionNunchuk }
func (Nunchuk) isExtension()        {}

// MotionPlusNunchuk is a nunchuk reported through a MotionPlus adapter.
type MotionPlusNunchuk struct {
	NunchukState
}

// Type implements Extension.
func (MotionPlusNunchuk) Type() ExtensionType { return ExtensionMotionPlusNunchuk }
func (MotionPlusNunchuk) isExtension()        {}

// extensionTypeOf returns the type of ext, treating nil as no extension.
func extensionTypeOf(ext Extension) ExtensionType {
	if ext == nil {
		return ExtensionNone
	}
	return ext.Type()
}

// RawSample is one event delivered by a controller for the current tick.
type RawSample struct {
	Buttons ButtonMask

	// AccelerometerActive gates Orientation.
	AccelerometerActive bool
	Orientation         EulerAngles

	// IRActive gates IR.
	IRActive bool
	IR       Vec3

	// Extension is nil or NoExtension when nothing is attached.
	Extension Extension
}
