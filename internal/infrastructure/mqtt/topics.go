package mqtt

// Topic prefixes for the bridge's MQTT namespace.
//
// Per-bridge topics (buttons, analog, tracker, health, descriptor) are built
// by the wiimote package; this file covers the system-wide topics.
const (
	// TopicPrefix is the base for all bridge topics.
	TopicPrefix = "wiimote"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics provides builders for system-level MQTT topics.
type Topics struct{}

// SystemStatus returns the topic for client online/offline status.
//
// Example: wiimote/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
