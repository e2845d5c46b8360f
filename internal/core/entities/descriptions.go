// Package entities exposes the device settings and diagnostics of a
// registration as typed controls: numbers, switches, selects and sensors.
package entities

import "github.com/frostdev-ops/pma-tvoverlay/internal/core/payload"

// Kind is the control type of an entity
type Kind string

const (
	KindNumber       Kind = "number"
	KindSwitch       Kind = "switch"
	KindSelect       Kind = "select"
	KindSensor       Kind = "sensor"
	KindBinarySensor Kind = "binary_sensor"
)

// Entity categories
const (
	CategoryConfig     = "config"
	CategoryDiagnostic = "diagnostic"
)

// Section names the part of the device config an entity reads and writes
type Section string

const (
	SectionOverlay       Section = "overlay"
	SectionNotifications Section = "notifications"
	SectionSettings      Section = "settings"
)

// Entity keys
const (
	KeyClockVisibility              = "clock_visibility"
	KeyOverlayVisibility            = "overlay_visibility"
	KeyFixedNotificationsVisibility = "fixed_notifications_visibility"
	KeyNotificationDuration         = "notification_duration"
	KeyDisplayClock                 = "display_clock"
	KeyDisplayNotifications         = "display_notifications"
	KeyDisplayFixedNotifications    = "display_fixed_notifications"
	KeyPixelShift                   = "pixel_shift"
	KeyDebugMode                    = "debug_mode"
	KeyHotCorner                    = "hot_corner"
	KeyDefaultShape                 = "default_shape"
	KeyActiveNotificationIDs        = "active_notification_ids"
	KeyHostname                     = "hostname"
	KeyIPAddress                    = "ip_address"
	KeyConnectivity                 = "connectivity"
)

// Clock switch values. The device has no clock on/off flag; the switch
// drives the clock visibility percentage instead.
const (
	clockOn  = 95
	clockOff = 0
)

// Description declares one entity
type Description struct {
	Key      string
	Name     string
	Icon     string
	Kind     Kind
	Category string
	// Section and APIKey locate the value in the device config. Empty for
	// local and computed entities.
	Section Section
	APIKey  string
	Min     float64
	Max     float64
	Step    float64
	Unit    string
	Options []string
}

// Descriptions lists every entity in display order
var Descriptions = []Description{
	{
		Key: KeyClockVisibility, Name: "Clock visibility", Icon: "mdi:clock-outline",
		Kind: KindNumber, Category: CategoryConfig, Section: SectionOverlay, APIKey: "clockOverlayVisibility",
		Min: 0, Max: 95, Step: 5, Unit: "%",
	},
	{
		Key: KeyOverlayVisibility, Name: "Overlay visibility", Icon: "mdi:opacity",
		Kind: KindNumber, Category: CategoryConfig, Section: SectionOverlay, APIKey: "overlayVisibility",
		Min: 0, Max: 95, Step: 5, Unit: "%",
	},
	{
		Key: KeyFixedNotificationsVisibility, Name: "Fixed notifications visibility", Icon: "mdi:pin-outline",
		Kind: KindNumber, Category: CategoryConfig, Section: SectionNotifications, APIKey: "fixedNotificationsVisibility",
		Min: -1, Max: 95, Step: 5, Unit: "%",
	},
	{
		Key: KeyNotificationDuration, Name: "Notification duration", Icon: "mdi:timer-outline",
		Kind: KindNumber, Category: CategoryConfig, Section: SectionNotifications, APIKey: "notificationDuration",
		Min: 1, Max: 60, Step: 1, Unit: "s",
	},
	{
		Key: KeyDisplayClock, Name: "Display clock", Icon: "mdi:clock-outline",
		Kind: KindSwitch, Category: CategoryConfig, Section: SectionOverlay, APIKey: "clockOverlayVisibility",
	},
	{
		Key: KeyDisplayNotifications, Name: "Display notifications", Icon: "mdi:message-badge-outline",
		Kind: KindSwitch, Category: CategoryConfig, Section: SectionNotifications, APIKey: "displayNotifications",
	},
	{
		Key: KeyDisplayFixedNotifications, Name: "Display fixed notifications", Icon: "mdi:pin-outline",
		Kind: KindSwitch, Category: CategoryConfig, Section: SectionNotifications, APIKey: "displayFixedNotifications",
	},
	{
		Key: KeyPixelShift, Name: "Pixel shift", Icon: "mdi:television-shimmer",
		Kind: KindSwitch, Category: CategoryConfig, Section: SectionSettings, APIKey: "pixelShift",
	},
	{
		Key: KeyDebugMode, Name: "Debug mode", Icon: "mdi:bug-outline",
		Kind: KindSwitch, Category: CategoryDiagnostic, Section: SectionSettings, APIKey: "displayDebug",
	},
	{
		Key: KeyHotCorner, Name: "Hot corner", Icon: "mdi:arrow-top-right",
		Kind: KindSelect, Category: CategoryConfig, Section: SectionOverlay, APIKey: "hotCorner",
		Options: payload.ValidCorners,
	},
	{
		Key: KeyDefaultShape, Name: "Default shape", Icon: "mdi:shape-outline",
		Kind: KindSelect, Category: CategoryConfig,
		Options: payload.ValidShapes,
	},
	{
		Key: KeyActiveNotificationIDs, Name: "Active notification IDs", Icon: "mdi:identifier",
		Kind: KindSensor, Category: CategoryDiagnostic,
	},
	{
		Key: KeyHostname, Name: "Hostname", Icon: "mdi:dns",
		Kind: KindSensor, Category: CategoryDiagnostic,
	},
	{
		Key: KeyIPAddress, Name: "IP Address", Icon: "mdi:ip-network",
		Kind: KindSensor, Category: CategoryDiagnostic,
	},
	{
		Key: KeyConnectivity, Name: "Connectivity", Icon: "mdi:lan-connect",
		Kind: KindBinarySensor, Category: CategoryDiagnostic,
	},
}

// Lookup returns the description with the given key
func Lookup(key string) (Description, bool) {
	for _, d := range Descriptions {
		if d.Key == key {
			return d, true
		}
	}
	return Description{}, false
}

// coordinated reports whether the entity is unavailable while the device is
// unreachable. The sensors stay available; connectivity reports the outage.
func (d Description) coordinated() bool {
	switch d.Key {
	case KeyActiveNotificationIDs, KeyHostname, KeyIPAddress, KeyConnectivity:
		return false
	}
	return true
}
