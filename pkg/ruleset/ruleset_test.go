package ruleset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sample = `
rules:
  - type: black
    match: process
    value: steam.exe
  - type: white
    match: title
    value: jira
    enabled: false
departments:
  - id: 1
    target: 8h
    max_break: 1h
    max_break_count: 3
    max_break_single: 1800
    thresholds:
      - status: fish
        max: 30m
        trigger: require_reason
`

func TestParse(t *testing.T) {
	file, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(file.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(file.Rules))
	}
	if !file.Rules[0].IsEnabled() || file.Rules[1].IsEnabled() {
		t.Errorf("unexpected enabled flags: %+v", file.Rules)
	}

	dept := file.Departments[0]
	if dept.Target.Seconds() != 8*3600 {
		t.Errorf("expected target 28800, got %d", dept.Target.Seconds())
	}
	if dept.MaxBreakSingle.Seconds() != 1800 {
		t.Errorf("expected numeric seconds to be accepted, got %d", dept.MaxBreakSingle.Seconds())
	}
	if !dept.IsEnabled() {
		t.Error("department without enabled flag must be enabled")
	}
	if got := dept.Thresholds[0].Max.Seconds(); got != 1800 {
		t.Errorf("expected threshold max 1800, got %d", got)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"rule type":      "rules:\n  - {type: grey, match: process, value: x}\n",
		"rule match":     "rules:\n  - {type: black, match: path, value: x}\n",
		"empty value":    "rules:\n  - {type: black, match: process, value: ' '}\n",
		"department id":  "departments:\n  - {target: 8h}\n",
		"duplicate":      "departments:\n  - {id: 1}\n  - {id: 1}\n",
		"bounds":         "departments:\n  - id: 1\n    thresholds:\n      - {status: fish, min: 2h, max: 1h}\n",
		"trigger":        "departments:\n  - id: 1\n    thresholds:\n      - {status: fish, max: 1h, trigger: block}\n",
		"duration":       "departments:\n  - {id: 1, target: eight}\n",
		"missing status": "departments:\n  - id: 1\n    thresholds:\n      - {max: 1h}\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "missing.yaml") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("rules: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *File, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(f *File) { changes <- f }, nil)
	}()

	// даем наблюдателю подписаться
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case file := <-changes:
		if len(file.Rules) != 2 {
			t.Fatalf("expected reloaded rules, got %d", len(file.Rules))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
}
