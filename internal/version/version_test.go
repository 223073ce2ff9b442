package version

import (
	"bytes"
	"log/slog"
	"runtime"
	"strings"
	"testing"
)

// ========================================
// Get() Tests
// ========================================

func TestGet(t *testing.T) {
	info := Get()

	if info.Version == "" || info.Commit == "" || info.Date == "" {
		t.Errorf("build fields should not be empty: %+v", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if want := runtime.GOOS + "/" + runtime.GOARCH; info.Platform != want {
		t.Errorf("Platform = %q, want %q", info.Platform, want)
	}
}

// ========================================
// Formatting Tests
// ========================================

func TestInfo_String(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"clean build", Info{Version: "2.1.0", Commit: "deadbeef", Date: "2024-06-01"}, "2.1.0 (deadbeef) built 2024-06-01"},
		{"dirty build", Info{Version: "2.1.0", Commit: "deadbeef", Date: "2024-06-01", Dirty: true}, "2.1.0 (deadbeef-dirty) built 2024-06-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInfo_Short(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Version: "1.2.3"}, "1.2.3"},
		{Info{Version: "1.2.3", Dirty: true}, "1.2.3-dirty"},
		{Info{Version: "0.0.0-dev", Dirty: true}, "0.0.0-dev-dirty"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.info.Short(); got != tt.want {
				t.Errorf("Short() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInfo_LogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logger.Info("starting", "build", Info{Version: "1.0.0", Commit: "abc123", Date: "2026-01-01"})

	out := buf.String()
	for _, want := range []string{"build.version=1.0.0", "build.commit=abc123", "build.date=2026-01-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q should contain %q", out, want)
		}
	}
}
