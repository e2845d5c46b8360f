package payload

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestNormalizeColor(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"red", "#FF0000", true},
		{"  Turquoise ", "#40E0D0", true},
		{"GREY", "#808080", true},
		{"#00ff7f", "#00FF7F", true},
		{"00ff7f", "#00FF7F", true},
		{"#fff", "", false},
		{"#GG0000", "", false},
		{"not-a-color", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeColor(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeColorIsIdempotent(t *testing.T) {
	inputs := append(ColorNames(), "#abcdef", "123456", "#A0B1C2")
	for _, in := range inputs {
		once, ok := NormalizeColor(in)
		require.True(t, ok, in)
		twice, ok := NormalizeColor(once)
		require.True(t, ok, in)
		assert.Equal(t, once, twice, in)
	}
}

func TestColorTableSize(t *testing.T) {
	assert.Len(t, ColorNames(), 27)
}

func TestHexWithAlpha(t *testing.T) {
	got, ok := HexWithAlpha("#FF0000", intPtr(40))
	assert.True(t, ok)
	assert.Equal(t, "#66FF0000", got)

	got, ok = HexWithAlpha("red", nil)
	assert.True(t, ok)
	assert.Equal(t, "#66FF0000", got)

	got, _ = HexWithAlpha("blue", intPtr(100))
	assert.Equal(t, "#FF0000FF", got)

	got, _ = HexWithAlpha("blue", intPtr(0))
	assert.Equal(t, "#000000FF", got)

	got, _ = HexWithAlpha("white", intPtr(50))
	assert.Equal(t, "#80FFFFFF", got)

	_, ok = HexWithAlpha("nope", intPtr(50))
	assert.False(t, ok)
}

func TestApplyLegacyAliases(t *testing.T) {
	in := map[string]any{
		"smallIcon":       "mdi:bell",
		"iconColor":       "red",
		"icon_color":      "blue",
		"message":         "hello",
		"backgroundColor": "black",
	}

	out := ApplyLegacyAliases(in)

	assert.Equal(t, map[string]any{
		"small_icon":       "mdi:bell",
		"icon_color":       "blue",
		"message":          "hello",
		"background_color": "black",
	}, out)
	assert.Contains(t, in, "smallIcon", "input must not be modified")
}

func TestParseNotification(t *testing.T) {
	n, err := ParseNotification(map[string]any{
		"title":     "Laundry",
		"message":   "Done",
		"duration":  float64(8),
		"corner":    "bottom_end",
		"mediaType": "image",
		"mediaUrl":  "https://example.com/cam.jpg",
		"host":      "10.0.0.5",
	})
	require.NoError(t, err)
	assert.Equal(t, "Laundry", *n.Title)
	assert.Equal(t, 8, *n.Duration)
	assert.Equal(t, "bottom_end", *n.Corner)
	assert.Equal(t, MediaImage, n.MediaType)
	assert.Equal(t, "https://example.com/cam.jpg", n.MediaURL)
	assert.Nil(t, n.ID)
}

func TestParseNotificationZeroDuration(t *testing.T) {
	n, err := ParseNotification(map[string]any{"duration": float64(0), "host": "10.0.0.5"})
	require.NoError(t, err)
	require.NotNil(t, n.Duration)
	assert.Equal(t, 0, *n.Duration)

	wire := BuildNotification(n, Defaults{})
	require.NotNil(t, wire.Duration)
	assert.Equal(t, 0, *wire.Duration)
}

func TestParseNotificationValidation(t *testing.T) {
	tests := []struct {
		name  string
		data  map[string]any
		field string
	}{
		{"negative duration", map[string]any{"duration": float64(-1)}, FieldDuration},
		{"fractional duration", map[string]any{"duration": 1.5}, FieldDuration},
		{"bad corner", map[string]any{"corner": "middle"}, FieldCorner},
		{"bad media type", map[string]any{"media_type": "gif"}, FieldMediaType},
		{"ftp url", map[string]any{"media_url": "ftp://example.com/a.png"}, FieldMediaURL},
		{"relative url", map[string]any{"media_url": "/a.png"}, FieldMediaURL},
		{"url without host", map[string]any{"media_url": "http://"}, FieldMediaURL},
		{"non-string title", map[string]any{"title": []any{"x"}}, FieldTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseNotification(tt.data)
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "expected validation error, got %v", err)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestValidateMediaURLAcceptsStreams(t *testing.T) {
	assert.NoError(t, ValidateMediaURL("rtsp://192.168.1.10:554/stream"))
	assert.NoError(t, ValidateMediaURL("RTSPS://cam.local/live"))
	assert.NoError(t, ValidateMediaURL("http://example.com/a.mp4"))
}

func TestBuildNotificationOmitsAbsentFields(t *testing.T) {
	n, err := ParseNotification(map[string]any{"message": "hi"})
	require.NoError(t, err)

	raw, err := json.Marshal(BuildNotification(n, Defaults{}))
	require.NoError(t, err)

	assert.JSONEq(t, `{"message":"hi","corner":"top_start"}`, string(raw))
	assert.NotContains(t, string(raw), "null")
}

func TestBuildNotification(t *testing.T) {
	n, err := ParseNotification(map[string]any{
		"id":               "door",
		"title":            "",
		"message":          "Front door opened",
		"source":           "alarm",
		"duration":         "12",
		"small_icon":       "mdi:door",
		"small_icon_color": "orange",
		"largeIcon":        "https://example.com/large.png",
		"media_type":       "video",
		"media_url":        "rtsp://cam.local/live",
	})
	require.NoError(t, err)

	p := BuildNotification(n, Defaults{HotCorner: "bottom_start"})

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "door",
		"title": "",
		"message": "Front door opened",
		"source": "alarm",
		"duration": 12,
		"corner": "bottom_start",
		"smallIcon": "mdi:door",
		"smallIconColor": "#FFA500",
		"largeIcon": "https://example.com/large.png",
		"video": "rtsp://cam.local/live"
	}`, string(raw))
}

func TestBuildNotificationMediaRequiresType(t *testing.T) {
	n, err := ParseNotification(map[string]any{"media_url": "https://example.com/a.png"})
	require.NoError(t, err)
	p := BuildNotification(n, Defaults{})
	assert.Empty(t, p.Image)
	assert.Empty(t, p.Video)

	n, err = ParseNotification(map[string]any{"media_url": "https://example.com/a.png", "media_type": "none"})
	require.NoError(t, err)
	p = BuildNotification(n, Defaults{})
	assert.Empty(t, p.Image)
	assert.Empty(t, p.Video)
}

func TestBuildNotificationDropsInvalidColor(t *testing.T) {
	n, err := ParseNotification(map[string]any{"small_icon_color": "mauve-ish"})
	require.NoError(t, err)
	assert.Empty(t, BuildNotification(n, Defaults{}).SmallIconColor)
}

func TestParseFixedNotificationRequiresID(t *testing.T) {
	for _, data := range []map[string]any{{}, {"id": "   "}, {"id": nil}} {
		_, err := ParseFixedNotification(data)
		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "id_required", vErr.Key)
	}
}

func TestParseFixedNotificationOpacityRange(t *testing.T) {
	_, err := ParseFixedNotification(map[string]any{"id": "a", "background_opacity": float64(101)})
	assert.Error(t, err)

	_, err = ParseFixedNotification(map[string]any{"id": "a", "backgroundOpacity": float64(-1)})
	assert.Error(t, err)

	n, err := ParseFixedNotification(map[string]any{"id": "a", "backgroundOpacity": "75"})
	require.NoError(t, err)
	assert.Equal(t, 75, *n.BackgroundOpacity)
}

func TestBuildFixedNotification(t *testing.T) {
	n, err := ParseFixedNotification(map[string]any{
		"id":              "washer",
		"message":         "Washer running",
		"icon":            "mdi:washing-machine",
		"messageColor":    "white",
		"icon_color":      "#00ff00",
		"border_color":    "bogus",
		"backgroundColor": "black",
		"expiration":      "30m",
	})
	require.NoError(t, err)

	raw, err := json.Marshal(BuildFixedNotification(n, Defaults{DefaultShape: "circle"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "washer",
		"visible": true,
		"message": "Washer running",
		"expiration": "30m",
		"shape": "circle",
		"icon": "mdi:washing-machine",
		"messageColor": "#FFFFFF",
		"iconColor": "#00FF00",
		"backgroundColor": "#66000000"
	}`, string(raw))
}

func TestBuildFixedNotificationDefaults(t *testing.T) {
	n, err := ParseFixedNotification(map[string]any{"id": "x", "visible": "off"})
	require.NoError(t, err)

	p := BuildFixedNotification(n, Defaults{})
	assert.Equal(t, ShapeRounded, p.Shape)
	require.NotNil(t, p.Visible)
	assert.False(t, *p.Visible)
	assert.Nil(t, p.Message)
	assert.Empty(t, p.BackgroundColor)
}

func TestParseClearFixed(t *testing.T) {
	id, err := ParseClearFixed(map[string]any{"id": "washer"})
	require.NoError(t, err)
	assert.Equal(t, "washer", id)

	_, err = ParseClearFixed(map[string]any{"id": ""})
	assert.Error(t, err)
}
