// Package telemetry provides opt-in usage telemetry for the dataferry CLI.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"
)

// Event represents one telemetry event.
type Event struct {
	EventType    string                 `json:"event_type"`
	Command      string                 `json:"command,omitempty"`
	Target       string                 `json:"target,omitempty"`
	Duration     *time.Duration         `json:"duration,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	Version      string                 `json:"version"`
	OS           string                 `json:"os"`
	Architecture string                 `json:"architecture"`
}

// Collector batches events and ships them in the background.
type Collector struct {
	enabled       bool
	endpoint      string
	events        []Event
	mu            sync.Mutex
	httpClient    *http.Client
	version       string
	batchSize     int
	flushInterval time.Duration
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

var (
	globalCollector *Collector
	once            sync.Once
)

// Init initializes the global telemetry collector.
func Init(version string, enabled bool) {
	once.Do(func() {
		globalCollector = &Collector{
			enabled:       enabled && !isDisabled(),
			endpoint:      endpoint(),
			events:        make([]Event, 0, 100),
			httpClient:    &http.Client{Timeout: 5 * time.Second},
			version:       version,
			batchSize:     10,
			flushInterval: 30 * time.Second,
			stopChan:      make(chan struct{}),
		}

		if globalCollector.enabled {
			globalCollector.startBackgroundFlush()
		}
	})
}

// RecordCommand records a command execution event.
func RecordCommand(command string, target string, duration time.Duration, err error) {
	if globalCollector == nil || !globalCollector.enabled {
		return
	}

	event := Event{
		EventType:    "command",
		Command:      command,
		Target:       target,
		Duration:     &duration,
		Timestamp:    time.Now(),
		Version:      globalCollector.version,
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}

	if err != nil {
		event.Error = err.Error()
	}

	globalCollector.recordEvent(event)
}

// RecordError records an error event.
func RecordError(errorType string, err error, metadata map[string]interface{}) {
	if globalCollector == nil || !globalCollector.enabled {
		return
	}

	event := Event{
		EventType:    "error",
		Error:        err.Error(),
		Metadata:     metadata,
		Timestamp:    time.Now(),
		Version:      globalCollector.version,
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}

	if metadata == nil {
		event.Metadata = make(map[string]interface{})
	}
	event.Metadata["error_type"] = errorType

	globalCollector.recordEvent(event)
}

// RecordTransfer records a completed data transfer.
func RecordTransfer(sourceTable string, rows int, duration time.Duration, failed bool) {
	if globalCollector == nil || !globalCollector.enabled {
		return
	}

	event := Event{
		EventType: "transfer",
		Duration:  &duration,
		Metadata: map[string]interface{}{
			"table":  sourceTable,
			"rows":   rows,
			"failed": failed,
		},
		Timestamp:    time.Now(),
		Version:      globalCollector.version,
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
	}

	globalCollector.recordEvent(event)
}

// recordEvent adds an event to the collector
func (tc *Collector) recordEvent(event Event) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.events = append(tc.events, event)

	// Flush if batch size reached
	if len(tc.events) >= tc.batchSize {
		go tc.flush()
	}
}

// flush sends collected events to the telemetry endpoint
func (tc *Collector) flush() {
	tc.mu.Lock()
	if len(tc.events) == 0 {
		tc.mu.Unlock()
		return
	}

	events := make([]Event, len(tc.events))
	copy(events, tc.events)
	tc.events = tc.events[:0]
	tc.mu.Unlock()

	go tc.sendEvents(events)
}

// sendEvents sends events to the telemetry endpoint
func (tc *Collector) sendEvents(events []Event) {
	if len(events) == 0 {
		return
	}

	payload := map[string]interface{}{
		"events": events,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		// Silently fail - telemetry should never break the application
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", tc.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", fmt.Sprintf("dataferry-connector/%s", tc.version))

	resp, err := tc.httpClient.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	// Read response to completion (but ignore it)
	io.Copy(io.Discard, resp.Body)
}

// startBackgroundFlush starts a background goroutine to flush events periodically
func (tc *Collector) startBackgroundFlush() {
	tc.wg.Add(1)
	go func() {
		defer tc.wg.Done()
		ticker := time.NewTicker(tc.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				tc.flush()
			case <-tc.stopChan:
				// Final flush before stopping
				tc.flush()
				return
			}
		}
	}()
}

// Shutdown stops the telemetry collector and flushes remaining events.
func Shutdown() {
	if globalCollector == nil {
		return
	}

	close(globalCollector.stopChan)
	globalCollector.wg.Wait()
	globalCollector.flush()
}

// isDisabled checks if telemetry is disabled via environment variable or flag
func isDisabled() bool {
	if os.Getenv("DATAFERRY_TELEMETRY_DISABLED") == "1" || os.Getenv("DATAFERRY_TELEMETRY_DISABLED") == "true" {
		return true
	}

	for _, arg := range os.Args {
		if arg == "--no-telemetry" {
			return true
		}
	}

	return false
}

// endpoint returns the telemetry endpoint URL
func endpoint() string {
	ep := os.Getenv("DATAFERRY_TELEMETRY_ENDPOINT")
	if ep == "" {
		return "https://telemetry.dataferry.dev/events"
	}
	return ep
}

// IsEnabled returns whether telemetry is enabled
func IsEnabled() bool {
	return globalCollector != nil && globalCollector.enabled
}
