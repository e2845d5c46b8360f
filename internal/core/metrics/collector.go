package metrics

import "time"

// MetricsCollector records the service's operational metrics
type MetricsCollector interface {
	RecordHTTPRequest(method, path string, status int, duration time.Duration)
	RecordWebSocketConnection(action string)
	RecordPoll(device string, success bool, duration time.Duration)
	SetDeviceAvailable(device string, available bool)
	RecordServiceCall(service, result string)
	SetActiveNotificationIDs(device string, count int)
	RemoveDevice(device string)
}

// MetricsConfig contains configuration for metrics collection
type MetricsConfig struct {
	Enabled bool
	Prefix  string
}

// NoopCollector discards everything. It is used when metrics are disabled
// and in tests.
type NoopCollector struct{}

func (NoopCollector) RecordHTTPRequest(string, string, int, time.Duration) {}
func (NoopCollector) RecordWebSocketConnection(string)                      {}
func (NoopCollector) RecordPoll(string, bool, time.Duration)                {}
func (NoopCollector) SetDeviceAvailable(string, bool)                       {}
func (NoopCollector) RecordServiceCall(string, string)                      {}
func (NoopCollector) SetActiveNotificationIDs(string, int)                  {}
func (NoopCollector) RemoveDevice(string)                                   {}
