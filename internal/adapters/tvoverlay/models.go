package tvoverlay

// Device endpoints
const (
	EndpointNotify           = "/notify"
	EndpointNotifyFixed      = "/notify_fixed"
	EndpointGet              = "/get"
	EndpointGetOverlay       = "/get/overlay"
	EndpointSetOverlay       = "/set/overlay"
	EndpointSetNotifications = "/set/notifications"
	EndpointSetSettings      = "/set/settings"
)

// NotifyPayload is the body of POST /notify. Nil fields are omitted; a
// pointer to an empty string is sent as "".
type NotifyPayload struct {
	ID             *string `json:"id,omitempty"`
	Title          *string `json:"title,omitempty"`
	Message        *string `json:"message,omitempty"`
	Source         *string `json:"source,omitempty"`
	Duration       *int    `json:"duration,omitempty"`
	Corner         string  `json:"corner,omitempty"`
	SmallIcon      string  `json:"smallIcon,omitempty"`
	SmallIconColor string  `json:"smallIconColor,omitempty"`
	LargeIcon      string  `json:"largeIcon,omitempty"`
	Image          string  `json:"image,omitempty"`
	Video          string  `json:"video,omitempty"`
}

// FixedNotifyPayload is the body of POST /notify_fixed
type FixedNotifyPayload struct {
	ID              string  `json:"id"`
	Visible         *bool   `json:"visible,omitempty"`
	Message         *string `json:"message,omitempty"`
	Expiration      *string `json:"expiration,omitempty"`
	Shape           string  `json:"shape,omitempty"`
	Icon            string  `json:"icon,omitempty"`
	MessageColor    string  `json:"messageColor,omitempty"`
	IconColor       string  `json:"iconColor,omitempty"`
	BorderColor     string  `json:"borderColor,omitempty"`
	BackgroundColor string  `json:"backgroundColor,omitempty"`
}

// DeviceConfig is the decoded body of GET /get. Each section is whatever
// object the device reported, or empty.
type DeviceConfig struct {
	Overlay       map[string]any `json:"overlay"`
	Settings      map[string]any `json:"settings"`
	Notifications map[string]any `json:"notifications"`
	Status        map[string]any `json:"status"`
}

// ParseDeviceConfig unwraps an optional "result" envelope and pulls the four
// state sections out of a /get response. Missing or non-object sections come
// back as empty maps.
func ParseDeviceConfig(raw map[string]any) DeviceConfig {
	body := raw
	if wrapped, ok := raw["result"].(map[string]any); ok {
		body = wrapped
	}
	return DeviceConfig{
		Overlay:       section(body, "overlay"),
		Settings:      section(body, "settings"),
		Notifications: section(body, "notifications"),
		Status:        section(body, "status"),
	}
}

func section(body map[string]any, key string) map[string]any {
	if m, ok := body[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
