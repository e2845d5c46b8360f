package payload

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// DefaultOpacity is applied to background colors when no opacity is given
const DefaultOpacity = 40

var hexColorPattern = regexp.MustCompile(`^#?[0-9A-Fa-f]{6}$`)

// colorNames maps common color names to #RRGGBB
var colorNames = map[string]string{
	"red":       "#FF0000",
	"green":     "#00FF00",
	"blue":      "#0000FF",
	"white":     "#FFFFFF",
	"black":     "#000000",
	"yellow":    "#FFFF00",
	"orange":    "#FFA500",
	"purple":    "#800080",
	"pink":      "#FFC0CB",
	"cyan":      "#00FFFF",
	"magenta":   "#FF00FF",
	"gray":      "#808080",
	"grey":      "#808080",
	"brown":     "#A52A2A",
	"lime":      "#00FF00",
	"navy":      "#000080",
	"teal":      "#008080",
	"maroon":    "#800000",
	"olive":     "#808000",
	"silver":    "#C0C0C0",
	"aqua":      "#00FFFF",
	"gold":      "#FFD700",
	"coral":     "#FF7F50",
	"salmon":    "#FA8072",
	"violet":    "#EE82EE",
	"indigo":    "#4B0082",
	"turquoise": "#40E0D0",
}

// ColorNames returns the supported color names
func ColorNames() []string {
	names := make([]string, 0, len(colorNames))
	for name := range colorNames {
		names = append(names, name)
	}
	return names
}

// NormalizeColor converts a color name or a 6-digit hex string (with or
// without a leading #) to upper-case #RRGGBB. The second result is false when
// the input is empty or not a recognizable color.
func NormalizeColor(color string) (string, bool) {
	color = strings.ToLower(strings.TrimSpace(color))
	if color == "" {
		return "", false
	}
	if hex, ok := colorNames[color]; ok {
		return hex, true
	}
	if !strings.HasPrefix(color, "#") {
		color = "#" + color
	}
	if !hexColorPattern.MatchString(color) {
		return "", false
	}
	return strings.ToUpper(color), true
}

// HexWithAlpha normalizes color and prefixes an alpha channel derived from
// opacity (0-100, nil means DefaultOpacity), producing #AARRGGBB.
func HexWithAlpha(color string, opacity *int) (string, bool) {
	hex, ok := NormalizeColor(color)
	if !ok {
		return "", false
	}
	pct := DefaultOpacity
	if opacity != nil {
		pct = *opacity
	}
	alpha := int(math.Round(float64(pct) / 100 * 255))
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 255 {
		alpha = 255
	}
	return fmt.Sprintf("#%02X%s", alpha, strings.TrimPrefix(hex, "#")), true
}
