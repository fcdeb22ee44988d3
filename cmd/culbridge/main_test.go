package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/cul-bridge/internal/bridges/cul"
)

// writeConfig writes a config whose serial device does not exist, so run
// fails at the transport step without needing hardware or a broker.
func writeConfig(t *testing.T, dbPath string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
bridge:
  id: test-bridge

transport:
  type: serial
  serial:
    device: "` + filepath.Join(tmpDir, "no-such-tty") + `"
    baud_rate: 38400
    init_delay: 0s

mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "culbridge-test"

registry:
  database:
    path: "` + dbPath + `"
    wal_mode: true
    busy_timeout: 5

devices:
  - address: "1111"
    name: doorbell
    device_class: sound

logging:
  level: error
  format: text
  output: stderr
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// execute runs the command tree with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := cmd.ExecuteContext(ctx)
	return stdout.String(), err
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config failure", err)
	}
}

// TestRun_TransportOpenFails verifies run stops at the transport step when
// the serial device is missing.
func TestRun_TransportOpenFails(t *testing.T) {
	configPath := writeConfig(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, configPath)
	if err == nil {
		t.Fatal("run() should fail when the serial device does not exist")
	}
	if !strings.Contains(err.Error(), "opening transport") {
		t.Errorf("run() error = %v, want opening transport failure", err)
	}
}

// TestRun_RegistryDatabaseMigrated verifies the registry database is created
// and migrated before the transport is opened.
func TestRun_RegistryDatabaseMigrated(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "registry.db")
	configPath := writeConfig(t, dbPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, configPath)
	if err == nil || !strings.Contains(err.Error(), "opening transport") {
		t.Fatalf("run() error = %v, want opening transport failure", err)
	}

	if _, statErr := os.Stat(dbPath); statErr != nil {
		t.Errorf("registry database not created: %v", statErr)
	}
}

// TestGetConfigPath verifies flag, environment and default precedence.
func TestGetConfigPath(t *testing.T) {
	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"default", "", "", defaultConfigPath},
		{"env override", "", "/etc/culbridge/env.yaml", "/etc/culbridge/env.yaml"},
		{"flag wins", "/tmp/flag.yaml", "/etc/culbridge/env.yaml", "/tmp/flag.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CULBRIDGE_CONFIG", tt.env)
			if got := getConfigPath(tt.flag); got != tt.want {
				t.Errorf("getConfigPath(%q) = %q, want %q", tt.flag, got, tt.want)
			}
		})
	}
}

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name      string
		frame     string
		wantAddr  string
		wantState cul.State
		wantRSSI  int
	}{
		{"without terminator", "F12340011A2", "1111", cul.StateOn, -168},
		{"with terminator", "F12340000A2\r\n", "1111", cul.StateOff, -168},
		{"other address", "F1234561100", "2223", cul.StateOn, -330},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "decode", tt.frame)
			if err != nil {
				t.Fatalf("decode error = %v", err)
			}

			var got cul.Telegram
			if err := json.Unmarshal([]byte(out), &got); err != nil {
				t.Fatalf("output is not a telegram: %v\n%s", err, out)
			}
			if got.HouseCode != "12131421" {
				t.Errorf("HouseCode = %q, want 12131421", got.HouseCode)
			}
			if got.DeviceAddress != tt.wantAddr {
				t.Errorf("DeviceAddress = %q, want %q", got.DeviceAddress, tt.wantAddr)
			}
			if got.State != tt.wantState {
				t.Errorf("State = %q, want %q", got.State, tt.wantState)
			}
			if got.RSSI != tt.wantRSSI {
				t.Errorf("RSSI = %d, want %d", got.RSSI, tt.wantRSSI)
			}
		})
	}
}

func TestDecodeCommand_UnknownState(t *testing.T) {
	if _, err := execute(t, "decode", "F12340099A2"); err == nil {
		t.Fatal("decode should fail for an unknown state code")
	}
}

func TestDevicesCommand_ImportAndList(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "registry.db")
	configPath := writeConfig(t, dbPath)

	devicesPath := filepath.Join(t.TempDir(), "devices.yaml")
	devicesYAML := `devices:
  - address: "2223"
    name: hallway_motion
    device_class: motion
  - address: "4444"
    name: back_door
    device_class: door
`
	if err := os.WriteFile(devicesPath, []byte(devicesYAML), 0600); err != nil {
		t.Fatalf("failed to write devices file: %v", err)
	}

	out, err := execute(t, "--config", configPath, "devices", "import", devicesPath)
	if err != nil {
		t.Fatalf("devices import error = %v", err)
	}
	if !strings.Contains(out, "imported 2 devices") {
		t.Errorf("import output = %q", out)
	}

	out, err = execute(t, "--config", configPath, "devices", "list")
	if err != nil {
		t.Fatalf("devices list error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("list output has %d lines, want header + 2:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "2223") || !strings.Contains(lines[1], "hallway_motion") {
		t.Errorf("first device line = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "4444") || !strings.Contains(lines[2], "door") {
		t.Errorf("second device line = %q", lines[2])
	}
}

func TestDevicesCommand_RequiresDatabase(t *testing.T) {
	configPath := writeConfig(t, "")

	if _, err := execute(t, "--config", configPath, "devices", "list"); err == nil {
		t.Fatal("devices list should fail without registry.database.path")
	}
}

func TestDevicesCommand_ImportRejectsInvalidFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "registry.db")
	configPath := writeConfig(t, dbPath)

	devicesPath := filepath.Join(t.TempDir(), "devices.yaml")
	invalid := `devices:
  - address: "5555"
    name: doorbell
    device_class: sound
`
	if err := os.WriteFile(devicesPath, []byte(invalid), 0600); err != nil {
		t.Fatalf("failed to write devices file: %v", err)
	}

	if _, err := execute(t, "--config", configPath, "devices", "import", devicesPath); err == nil {
		t.Fatal("devices import should reject an address outside 1-4")
	}
}
