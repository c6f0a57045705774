package wiimote

import "fmt"

// Descriptor describes the channel layout to downstream consumers.
type Descriptor struct {
	Device     DescriptorDevice             `json:"device"`
	Interfaces DescriptorInterfaces         `json:"interfaces"`
	Semantic   map[string]map[string]string `json:"semantic"`
}

// DescriptorDevice identifies the device.
type DescriptorDevice struct {
	Vendor      string `json:"vendor"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DescriptorInterfaces lists channel counts.
type DescriptorInterfaces struct {
	Tracker InterfaceCount `json:"tracker"`
	Analog  InterfaceCount `json:"analog"`
	Button  InterfaceCount `json:"button"`
}

// InterfaceCount is the size of one channel.
type InterfaceCount struct {
	Count int `json:"count"`
}

// buttonNames are the semantic names of button offsets 0..12.
var buttonNames = [ButtonsPerSlot]string{
	OffsetA:     "a",
	OffsetB:     "b",
	OffsetUp:    "up",
	OffsetDown:  "down",
	OffsetLeft:  "left",
	OffsetRight: "right",
	OffsetOne:   "1",
	OffsetTwo:   "2",
	OffsetMinus: "minus",
	OffsetPlus:  "plus",
	OffsetHome:  "home",
	OffsetC:     "nunchuk/c",
	OffsetZ:     "nunchuk/z",
}

var analogNames = [AnalogPerSlot]string{
	OffsetIRX:       "ir/x",
	OffsetIRY:       "ir/y",
	OffsetIRZ:       "ir/z",
	OffsetJoystickX: "nunchuk/joystick/x",
	OffsetJoystickY: "nunchuk/joystick/y",
}

// BuildDescriptor returns the descriptor for the fixed four-slot layout.
// Controllers are numbered from 1 in semantic paths.
func BuildDescriptor() Descriptor {
	d := Descriptor{
		Device: DescriptorDevice{
			Vendor:      "Nintendo",
			Name:        "Wiimote",
			Description: "Up to four Wii Remotes with optional Nunchuk",
		},
		Interfaces: DescriptorInterfaces{
			Tracker: InterfaceCount{Count: TrackerChannelCount},
			Analog:  InterfaceCount{Count: AnalogChannelCount},
			Button:  InterfaceCount{Count: ButtonChannelCount},
		},
		Semantic: make(map[string]map[string]string, SlotCount),
	}

	for slot := 0; slot < SlotCount; slot++ {
		paths := make(map[string]string, ButtonsPerSlot+AnalogPerSlot+TrackersPerSlot)
		for offset, name := range buttonNames {
			paths[name] = fmt.Sprintf("button/%d", ButtonIndex(slot, offset))
		}
		for offset, name := range analogNames {
			paths[name] = fmt.Sprintf("analog/%d", AnalogIndex(slot, offset))
		}
		paths["pose"] = fmt.Sprintf("tracker/%d", MainTracker(slot))
		paths["nunchuk/pose"] = fmt.Sprintf("tracker/%d", ExtensionTracker(slot))

		d.Semantic[fmt.Sprintf("controller%d", slot+1)] = paths
	}
	return d
}
