package influxdb_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/aqua-logic-core/internal/infrastructure/config"
	"github.com/nerrad567/aqua-logic-core/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for the local dev InfluxDB.
// These values match docker-compose.yml.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "aqualogic-dev-token",
		Org:           "aqualogic",
		Bucket:        "metrics",
		BatchSize:     100,
		FlushInterval: 1, // 1 second for faster test feedback
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) {
	t.Helper()
	cfg := testConfig()
	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	client.Close() //nolint:errcheck // Probe connection only
}

func TestConnect(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() should return error when disabled")
	}
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999" // Non-existent port

	_, err := influxdb.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() should return error for invalid URL")
	}
}

func TestHealthCheck(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestWriteTriggerEvent(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	// Track errors with mutex for race safety
	var writeErr error
	var mu sync.Mutex
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	client.WriteTriggerEvent("low-do-emergency", "pond-1", "activated", "dissolved_oxygen", 2.8)
	client.Flush()

	// Give a moment for error callback
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		t.Errorf("Write error = %v", writeErr)
	}
}

func TestWriteDevicePower(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	var writeErr error
	var mu sync.Mutex
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	client.WriteDevicePower("aerator-1-1", "pond-1", 100)
	client.Flush()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		t.Errorf("Write error = %v", writeErr)
	}
}

func TestWritePoint(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	var writeErr error
	var mu sync.Mutex
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	client.WritePoint(
		"custom_measurement",
		map[string]string{"source": "test"},
		map[string]interface{}{"value": 99.9, "count": 5},
	)
	client.Flush()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		t.Errorf("Write error = %v", writeErr)
	}
}

func TestClose(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// Write something before close
	client.WriteDevicePower("close-test", "pond-1", 50)

	// Close should flush and disconnect
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	// Should be disconnected
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}
