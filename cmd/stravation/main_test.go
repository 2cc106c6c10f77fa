package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"stravation/internal/config"
)

func TestParseInterspersed(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantPos []string
		wantF   bool
	}{
		{name: "flag after positional", args: []string{"2025-01-01", "-force"}, wantPos: []string{"2025-01-01"}, wantF: true},
		{name: "flag before positional", args: []string{"-force", "2025-01-01"}, wantPos: []string{"2025-01-01"}, wantF: true},
		{name: "no flags", args: []string{"a", "b"}, wantPos: []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFlagSet("test")
			force := fs.Bool("force", false, "")
			pos, err := parseInterspersed(fs, tt.args)
			if err != nil {
				t.Fatalf("parseInterspersed() error = %v", err)
			}
			if !reflect.DeepEqual(pos, tt.wantPos) || *force != tt.wantF {
				t.Errorf("parseInterspersed() = %v, force %v", pos, *force)
			}
		})
	}
}

func TestFindCommand(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range commands {
		if seen[c.name] {
			t.Errorf("duplicate command %q", c.name)
		}
		seen[c.name] = true
		if c.run == nil {
			t.Errorf("command %q has no run func", c.name)
		}
	}
	if _, ok := findCommand("sync-activities"); !ok {
		t.Error("sync-activities not found")
	}
	if _, ok := findCommand("nope"); ok {
		t.Error("unknown command found")
	}
}

func TestRun_EnvExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env.example")
	var out bytes.Buffer

	if code := run([]string{"env-example", path}, &out); code != 0 {
		t.Fatalf("run() = %d", code)
	}
	data, err := os.ReadFile(path)
	if err != nil || !bytes.Contains(data, []byte("STRAVA_REFRESH_TOKEN")) {
		t.Fatalf("example file not written: %v", err)
	}

	if err := os.WriteFile(path, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	if code := run([]string{"env-example", path}, &out); code != 0 {
		t.Fatalf("run() = %d", code)
	}
	if data, _ := os.ReadFile(path); string(data) != "keep" {
		t.Error("existing file overwritten without -force")
	}
	if code := run([]string{"env-example", "-force", path}, &out); code != 0 {
		t.Fatalf("run() = %d", code)
	}
	if data, _ := os.ReadFile(path); string(data) == "keep" {
		t.Error("-force did not overwrite")
	}
}

func TestRun_UsageErrors(t *testing.T) {
	var out bytes.Buffer
	if code := run(nil, &out); code != 2 {
		t.Errorf("run(no args) = %d, want 2", code)
	}
	if code := run([]string{"frobnicate"}, &out); code != 2 {
		t.Errorf("run(unknown) = %d, want 2", code)
	}
}

func TestStravaOptions(t *testing.T) {
	cfg := &config.Config{
		Strava: config.Strava{ClientID: "cid", ClientSecret: "secret", RefreshToken: "rt"},
		Tuning: config.Tuning{RateSafety: 150 * time.Millisecond},
	}
	opts := stravaOptions(cfg)
	if opts.ClientID != "cid" || opts.ClientSecret != "secret" || opts.RefreshToken != "rt" {
		t.Errorf("credentials not passed: %+v", opts)
	}
	if want := 1150 * time.Millisecond; opts.PageDelay != want {
		t.Errorf("PageDelay = %v, want %v", opts.PageDelay, want)
	}
}
