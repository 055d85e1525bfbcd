package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"empty", Config{}, false},
		{"json discard", Config{Level: "debug", Format: "json", Output: "discard"}, false},
		{"bad level", Config{Level: "loud"}, true},
		{"bad format", Config{Format: "xml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInitializeKeepsLoggerOnError(t *testing.T) {
	before := Logger
	if err := Initialize(Config{Level: "loud"}); err == nil {
		t.Fatal("Expected error for invalid level")
	}
	if Logger != before {
		t.Error("Expected global logger unchanged after a failed Initialize")
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.log")
	l, err := New(Config{Level: "warn", Format: "json", Output: path})
	if err != nil {
		t.Fatal(err)
	}
	Named(l, "quota").Info("dropped")
	Named(l, "quota").Warn("namespace unavailable")
	l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "dropped") {
		t.Errorf("Expected info entry filtered at warn level\n%s", out)
	}
	if !strings.Contains(out, `"logger":"quota"`) || !strings.Contains(out, "namespace unavailable") {
		t.Errorf("Expected named warn entry\n%s", out)
	}
}
