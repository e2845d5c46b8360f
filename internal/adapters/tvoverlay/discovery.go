package tvoverlay

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/sirupsen/logrus"
)

const (
	defaultServiceType      = "_tvoverlay._tcp"
	defaultDomain           = "local."
	defaultDiscoveryTimeout = 5 * time.Second
)

// DiscoveredDevice is an overlay device announced over mDNS
type DiscoveredDevice struct {
	Name     string            `json:"name"`
	Host     string            `json:"host"`
	Port     int               `json:"port"`
	Hostname string            `json:"hostname"`
	TXT      map[string]string `json:"txt,omitempty"`
}

// Address returns host:port for the discovered device
func (d DiscoveredDevice) Address() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// Discoverer browses the local network for overlay devices
type Discoverer struct {
	serviceType string
	domain      string
	timeout     time.Duration
	logger      *logrus.Logger
}

// NewDiscoverer creates a discoverer. Empty values fall back to the
// _tvoverlay._tcp service in the local. domain with a 5s browse window.
func NewDiscoverer(serviceType, domain string, timeout time.Duration, logger *logrus.Logger) *Discoverer {
	if serviceType == "" {
		serviceType = defaultServiceType
	}
	if domain == "" {
		domain = defaultDomain
	}
	if timeout <= 0 {
		timeout = defaultDiscoveryTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Discoverer{
		serviceType: serviceType,
		domain:      domain,
		timeout:     timeout,
		logger:      logger,
	}
}

// Discover runs one browse window and returns the devices seen, deduplicated
// by address and sorted by name.
func (d *Discoverer) Discover(ctx context.Context) ([]DiscoveredDevice, error) {
	d.logger.Debug("Starting mDNS discovery scan")

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry, 10)
	discoveryCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	go func() {
		if err := resolver.Browse(discoveryCtx, d.serviceType, d.domain, entries); err != nil {
			d.logger.WithError(err).Error("mDNS discovery failed")
		}
	}()

	seen := make(map[string]DiscoveredDevice)
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return collect(seen), nil
			}
			if device, ok := deviceFromEntry(entry); ok {
				seen[device.Address()] = device
			}
		case <-discoveryCtx.Done():
			return collect(seen), nil
		}
	}
}

func deviceFromEntry(entry *zeroconf.ServiceEntry) (DiscoveredDevice, bool) {
	if entry == nil || len(entry.AddrIPv4) == 0 {
		return DiscoveredDevice{}, false
	}
	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}
	device := DiscoveredDevice{
		Name:     entry.Instance,
		Host:     entry.AddrIPv4[0].String(),
		Port:     port,
		Hostname: strings.TrimSuffix(entry.HostName, "."),
	}
	if len(entry.Text) > 0 {
		device.TXT = make(map[string]string, len(entry.Text))
		for _, txt := range entry.Text {
			parts := strings.SplitN(txt, "=", 2)
			if len(parts) == 2 {
				device.TXT[parts[0]] = parts[1]
			}
		}
	}
	return device, true
}

func collect(seen map[string]DiscoveredDevice) []DiscoveredDevice {
	devices := make([]DiscoveredDevice, 0, len(seen))
	for _, d := range seen {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Name == devices[j].Name {
			return devices[i].Address() < devices[j].Address()
		}
		return devices[i].Name < devices[j].Name
	})
	return devices
}
