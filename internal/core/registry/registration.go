package registry

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidIdentifier is returned for identifiers outside [a-z0-9_]+
var ErrInvalidIdentifier = errors.New("invalid_identifier")

var (
	identifierPattern = regexp.MustCompile(`^[a-z0-9_]+$`)
	disallowedChars   = regexp.MustCompile(`[^a-z0-9_]`)
	repeatedUnderline = regexp.MustCompile(`_+`)
)

// Registration is a configured overlay device
type Registration struct {
	ID           string    `db:"id" json:"id"`
	Host         string    `db:"host" json:"host"`
	Port         int       `db:"port" json:"port"`
	Name         string    `db:"name" json:"name"`
	Identifier   string    `db:"identifier" json:"identifier"`
	HotCorner    string    `db:"hot_corner" json:"hot_corner"`
	DefaultShape string    `db:"default_shape" json:"default_shape"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Address returns host:port as used for uniqueness checks
func (r Registration) Address() string {
	return AddressKey(r.Host, r.Port)
}

// AddressKey formats a host and port the way registrations are keyed
func AddressKey(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// SanitizeIdentifier derives a stable identifier from a display name:
// lower case, spaces to underscores, anything outside [a-z0-9_] dropped,
// repeated underscores collapsed and trimmed. An empty result becomes
// "device".
func SanitizeIdentifier(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "_")
	s = disallowedChars.ReplaceAllString(s, "")
	s = repeatedUnderline.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "device"
	}
	return s
}

// ValidateIdentifier checks that id is non-empty and matches [a-z0-9_]+
func ValidateIdentifier(id string) error {
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("%w: %q must contain only lowercase letters, digits and underscores", ErrInvalidIdentifier, id)
	}
	return nil
}
