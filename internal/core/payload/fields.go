package payload

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Canonical field names accepted by the notification services
const (
	FieldDeviceID          = "device_id"
	FieldTarget            = "target"
	FieldHost              = "host"
	FieldID                = "id"
	FieldTitle             = "title"
	FieldMessage           = "message"
	FieldSource            = "source"
	FieldDuration          = "duration"
	FieldCorner            = "corner"
	FieldSmallIcon         = "small_icon"
	FieldSmallIconColor    = "small_icon_color"
	FieldLargeIcon         = "large_icon"
	FieldMediaType         = "media_type"
	FieldMediaURL          = "media_url"
	FieldVisible           = "visible"
	FieldShape             = "shape"
	FieldExpiration        = "expiration"
	FieldIcon              = "icon"
	FieldMessageColor      = "message_color"
	FieldIconColor         = "icon_color"
	FieldBorderColor       = "border_color"
	FieldBackgroundColor   = "background_color"
	FieldBackgroundOpacity = "background_opacity"
)

// legacyAliases maps the older camelCase field names to canonical names
var legacyAliases = map[string]string{
	"smallIcon":         FieldSmallIcon,
	"smallIconColor":    FieldSmallIconColor,
	"largeIcon":         FieldLargeIcon,
	"mediaType":         FieldMediaType,
	"mediaUrl":          FieldMediaURL,
	"messageColor":      FieldMessageColor,
	"iconColor":         FieldIconColor,
	"borderColor":       FieldBorderColor,
	"backgroundColor":   FieldBackgroundColor,
	"backgroundOpacity": FieldBackgroundOpacity,
}

// ApplyLegacyAliases returns a copy of data with camelCase aliases renamed to
// their canonical names. When both spellings are present the canonical value
// is kept and the alias dropped.
func ApplyLegacyAliases(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if _, isAlias := legacyAliases[k]; !isAlias {
			out[k] = v
		}
	}
	for alias, canonical := range legacyAliases {
		v, ok := data[alias]
		if !ok {
			continue
		}
		if _, exists := out[canonical]; !exists {
			out[canonical] = v
		}
	}
	return out
}

// ValidationError reports a service call rejected before any network call
type ValidationError struct {
	Field  string
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Key: "invalid_" + field, Reason: reason}
}

// String reads an optional string field. Numbers and booleans are formatted;
// null counts as absent.
func String(data map[string]any, field string) (*string, error) {
	v, ok := data[field]
	if !ok || v == nil {
		return nil, nil
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case json.Number:
		s = t.String()
	case bool:
		s = strconv.FormatBool(t)
	default:
		return nil, invalid(field, "expected a string")
	}
	return &s, nil
}

// Int reads an optional integral field, accepting JSON numbers and numeric
// strings.
func Int(data map[string]any, field string) (*int, error) {
	v, ok := data[field]
	if !ok || v == nil {
		return nil, nil
	}
	var n int
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return nil, invalid(field, "expected an integer")
		}
		n = int(t)
	case int:
		n = t
	case json.Number:
		i, err := strconv.Atoi(t.String())
		if err != nil {
			return nil, invalid(field, "expected an integer")
		}
		n = i
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil, invalid(field, "expected an integer")
		}
		n = i
	default:
		return nil, invalid(field, "expected an integer")
	}
	return &n, nil
}

// Bool reads an optional boolean field using the usual truthy spellings.
func Bool(data map[string]any, field string) (*bool, error) {
	v, ok := data[field]
	if !ok || v == nil {
		return nil, nil
	}
	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case float64:
		b = t != 0
	case int:
		b = t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "on", "enable":
			b = true
		case "0", "false", "no", "off", "disable":
			b = false
		default:
			return nil, invalid(field, "expected a boolean")
		}
	default:
		return nil, invalid(field, "expected a boolean")
	}
	return &b, nil
}

func oneOf(field string, value *string, allowed []string) error {
	if value == nil {
		return nil
	}
	for _, a := range allowed {
		if *value == a {
			return nil
		}
	}
	return invalid(field, fmt.Sprintf("must be one of %s", strings.Join(allowed, ", ")))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
