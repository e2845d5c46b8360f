package payload

import (
	"net/url"
	"strings"

	"github.com/frostdev-ops/pma-tvoverlay/internal/adapters/tvoverlay"
)

// Corners where transient notifications can appear
const (
	CornerTopStart    = "top_start"
	CornerTopEnd      = "top_end"
	CornerBottomStart = "bottom_start"
	CornerBottomEnd   = "bottom_end"
)

// Shapes for fixed notifications
const (
	ShapeCircle      = "circle"
	ShapeRounded     = "rounded"
	ShapeRectangular = "rectangular"
)

// Media types accepted by the notify service
const (
	MediaNone  = "none"
	MediaImage = "image"
	MediaVideo = "video"
)

var (
	ValidCorners    = []string{CornerTopStart, CornerTopEnd, CornerBottomStart, CornerBottomEnd}
	ValidShapes     = []string{ShapeCircle, ShapeRounded, ShapeRectangular}
	validMediaTypes = []string{MediaNone, MediaImage, MediaVideo}
	validURLSchemes = map[string]bool{"http": true, "https": true, "rtsp": true, "rtsps": true}
)

// Defaults carries the per-registration values used when a call leaves
// corner or shape unset.
type Defaults struct {
	HotCorner    string
	DefaultShape string
}

// Notification is a validated transient notification request
type Notification struct {
	ID             *string
	Title          *string
	Message        *string
	Source         *string
	Duration       *int
	Corner         *string
	SmallIcon      string
	SmallIconColor string
	LargeIcon      string
	MediaType      string
	MediaURL       string
}

// FixedNotification is a validated persistent notification request
type FixedNotification struct {
	ID                string
	Visible           bool
	Message           *string
	Expiration        *string
	Shape             *string
	Icon              string
	MessageColor      string
	IconColor         string
	BorderColor       string
	BackgroundColor   string
	BackgroundOpacity *int
}

// ParseNotification aliases and validates the fields of a notify call.
// Addressing fields are ignored here.
func ParseNotification(data map[string]any) (*Notification, error) {
	data = ApplyLegacyAliases(data)
	n := &Notification{}
	var err error

	if n.ID, err = String(data, FieldID); err != nil {
		return nil, err
	}
	if n.Title, err = String(data, FieldTitle); err != nil {
		return nil, err
	}
	if n.Message, err = String(data, FieldMessage); err != nil {
		return nil, err
	}
	if n.Source, err = String(data, FieldSource); err != nil {
		return nil, err
	}
	if n.Duration, err = Int(data, FieldDuration); err != nil {
		return nil, err
	}
	if n.Duration != nil && *n.Duration < 0 {
		return nil, invalid(FieldDuration, "must not be negative")
	}
	if n.Corner, err = String(data, FieldCorner); err != nil {
		return nil, err
	}
	if err := oneOf(FieldCorner, n.Corner, ValidCorners); err != nil {
		return nil, err
	}

	strs := map[string]*string{
		FieldSmallIcon:      &n.SmallIcon,
		FieldSmallIconColor: &n.SmallIconColor,
		FieldLargeIcon:      &n.LargeIcon,
	}
	for field, dst := range strs {
		v, err := String(data, field)
		if err != nil {
			return nil, err
		}
		*dst = deref(v)
	}

	mediaType, err := String(data, FieldMediaType)
	if err != nil {
		return nil, err
	}
	if err := oneOf(FieldMediaType, mediaType, validMediaTypes); err != nil {
		return nil, err
	}
	n.MediaType = deref(mediaType)

	mediaURL, err := String(data, FieldMediaURL)
	if err != nil {
		return nil, err
	}
	if mediaURL != nil {
		if err := ValidateMediaURL(*mediaURL); err != nil {
			return nil, err
		}
		n.MediaURL = *mediaURL
	}

	return n, nil
}

// ParseFixedNotification aliases and validates a notify_fixed call. The id
// is required and must not be blank.
func ParseFixedNotification(data map[string]any) (*FixedNotification, error) {
	data = ApplyLegacyAliases(data)
	n := &FixedNotification{Visible: true}

	id, err := requiredID(data)
	if err != nil {
		return nil, err
	}
	n.ID = id

	visible, err := Bool(data, FieldVisible)
	if err != nil {
		return nil, err
	}
	if visible != nil {
		n.Visible = *visible
	}
	if n.Message, err = String(data, FieldMessage); err != nil {
		return nil, err
	}
	if n.Expiration, err = String(data, FieldExpiration); err != nil {
		return nil, err
	}
	if n.Shape, err = String(data, FieldShape); err != nil {
		return nil, err
	}
	if err := oneOf(FieldShape, n.Shape, ValidShapes); err != nil {
		return nil, err
	}

	strs := map[string]*string{
		FieldIcon:            &n.Icon,
		FieldMessageColor:    &n.MessageColor,
		FieldIconColor:       &n.IconColor,
		FieldBorderColor:     &n.BorderColor,
		FieldBackgroundColor: &n.BackgroundColor,
	}
	for field, dst := range strs {
		v, err := String(data, field)
		if err != nil {
			return nil, err
		}
		*dst = deref(v)
	}

	if n.BackgroundOpacity, err = Int(data, FieldBackgroundOpacity); err != nil {
		return nil, err
	}
	if o := n.BackgroundOpacity; o != nil && (*o < 0 || *o > 100) {
		return nil, invalid(FieldBackgroundOpacity, "must be between 0 and 100")
	}

	return n, nil
}

// ParseClearFixed validates a clear_fixed call and returns the id to clear
func ParseClearFixed(data map[string]any) (string, error) {
	return requiredID(ApplyLegacyAliases(data))
}

func requiredID(data map[string]any) (string, error) {
	id, err := String(data, FieldID)
	if err != nil {
		return "", err
	}
	if id == nil || strings.TrimSpace(*id) == "" {
		return "", &ValidationError{
			Field:  FieldID,
			Key:    "id_required",
			Reason: "Notification ID is required. Please provide a unique ID to identify this notification.",
		}
	}
	return *id, nil
}

// ValidateMediaURL requires an absolute http(s) or rtsp(s) URL with a host
func ValidateMediaURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return invalid(FieldMediaURL, "not a valid URL")
	}
	if !validURLSchemes[strings.ToLower(u.Scheme)] {
		return invalid(FieldMediaURL, "scheme must be http, https, rtsp or rtsps")
	}
	if u.Hostname() == "" {
		return invalid(FieldMediaURL, "host is required")
	}
	return nil
}

// BuildNotification maps a transient notification to its wire payload.
// Absent fields are left out; corner falls back to the registration default.
func BuildNotification(n *Notification, defaults Defaults) *tvoverlay.NotifyPayload {
	p := &tvoverlay.NotifyPayload{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Source:    n.Source,
		Duration:  n.Duration,
		SmallIcon: n.SmallIcon,
		LargeIcon: n.LargeIcon,
	}

	if n.Corner != nil {
		p.Corner = *n.Corner
	} else if defaults.HotCorner != "" {
		p.Corner = defaults.HotCorner
	} else {
		p.Corner = CornerTopStart
	}

	if color, ok := NormalizeColor(n.SmallIconColor); ok {
		p.SmallIconColor = color
	}

	if n.MediaURL != "" {
		switch n.MediaType {
		case MediaImage:
			p.Image = n.MediaURL
		case MediaVideo:
			p.Video = n.MediaURL
		}
	}

	return p
}

// BuildFixedNotification maps a fixed notification to its wire payload.
// Colors that do not normalize are dropped; the background color carries an
// alpha channel from BackgroundOpacity.
func BuildFixedNotification(n *FixedNotification, defaults Defaults) *tvoverlay.FixedNotifyPayload {
	visible := n.Visible
	p := &tvoverlay.FixedNotifyPayload{
		ID:         n.ID,
		Visible:    &visible,
		Message:    n.Message,
		Expiration: n.Expiration,
		Icon:       n.Icon,
	}

	if n.Shape != nil {
		p.Shape = *n.Shape
	} else if defaults.DefaultShape != "" {
		p.Shape = defaults.DefaultShape
	} else {
		p.Shape = ShapeRounded
	}

	if color, ok := NormalizeColor(n.MessageColor); ok {
		p.MessageColor = color
	}
	if color, ok := NormalizeColor(n.IconColor); ok {
		p.IconColor = color
	}
	if color, ok := NormalizeColor(n.BorderColor); ok {
		p.BorderColor = color
	}
	if color, ok := HexWithAlpha(n.BackgroundColor, n.BackgroundOpacity); ok {
		p.BackgroundColor = color
	}

	return p
}
