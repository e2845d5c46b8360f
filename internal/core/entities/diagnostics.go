package entities

import "github.com/frostdev-ops/pma-tvoverlay/internal/core/registry"

// Diagnostics is the support dump of one registration
type Diagnostics struct {
	ConfigEntry struct {
		EntryID string `json:"entry_id"`
		Title   string `json:"title"`
		Host    string `json:"host"`
		Port    int    `json:"port"`
	} `json:"config_entry"`
	Device struct {
		Available bool    `json:"available"`
		Version   *string `json:"version"`
	} `json:"device"`
	State struct {
		Overlay       map[string]any `json:"overlay"`
		Notifications map[string]any `json:"notifications"`
		Settings      map[string]any `json:"settings"`
	} `json:"state"`
	ActiveNotificationIDs []string `json:"active_notification_ids"`
	LocalSettings         struct {
		HotCorner    string `json:"hot_corner"`
		DefaultShape string `json:"default_shape"`
	} `json:"local_settings"`
}

// BuildDiagnostics collects the registration, device state, active ids and
// local settings of e. State sections are empty before the first good poll.
func BuildDiagnostics(e *registry.Entry) Diagnostics {
	var d Diagnostics
	d.ConfigEntry.EntryID = e.ID()
	d.ConfigEntry.Title = e.Registration.Name
	d.ConfigEntry.Host = e.Registration.Host
	d.ConfigEntry.Port = e.Registration.Port

	d.State.Overlay = map[string]any{}
	d.State.Notifications = map[string]any{}
	d.State.Settings = map[string]any{}

	if c := e.Coordinator; c != nil {
		d.Device.Available = c.Available()
		if v := c.Version(); v != "" {
			d.Device.Version = &v
		}
		if data := c.Data(); data != nil {
			d.State.Overlay = data.Overlay
			d.State.Notifications = data.Notifications
			d.State.Settings = data.Settings
		}
	}

	d.ActiveNotificationIDs = []string{}
	if e.IDs != nil {
		d.ActiveNotificationIDs = e.IDs.IDs()
	}

	defaults := e.Defaults()
	d.LocalSettings.HotCorner = defaults.HotCorner
	d.LocalSettings.DefaultShape = defaults.DefaultShape
	return d
}
