package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type day string

func (d day) String() string { return string(d) }

func TestZeroLoggerIsNoop(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	l.Info("ignored", String("k", "v"))
	l.With(Int("n", 1)).Error("ignored")
}

func TestWriterJSONFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := NewWriter(&buf, "debug", false).Component("scheduler")
	l.Debug("reminder armed", String("task", "a"), Int("n", 2), Err(errors.New("boom")))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if m["message"] != "reminder armed" || m["comp"] != "scheduler" || m["task"] != "a" || m["err"] != "boom" {
		t.Fatalf("unexpected fields %v", m)
	}
	if c, _ := m["caller"].(string); !strings.HasPrefix(c, "logx_test.go:") {
		t.Fatalf("caller = %q", c)
	}
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := NewWriter(&buf, "warn", false)
	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %s", buf.String())
	}
	l.Warn("kept", Stringer("day", day("2024-03-04")))
	if !strings.Contains(buf.String(), `"day":"2024-03-04"`) {
		t.Fatalf("stringer field missing: %s", buf.String())
	}
}

func TestServiceApplySwapsLevelAndFile(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "routined.log")
	svc, l := newService(Config{Level: "info", Console: true, JSON: true}, &out)
	defer svc.Close()

	l.Debug("hidden")
	if out.Len() != 0 {
		t.Fatal("debug written at info level")
	}
	svc.Apply(Config{Level: "debug", Console: true, JSON: true, File: FileConfig{Enabled: true, Path: path}})
	l.Debug("visible")
	if !strings.Contains(out.String(), "visible") {
		t.Fatalf("console missing line: %q", out.String())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), "visible") {
		t.Fatalf("file missing line: %q", b)
	}
}

func TestServiceApplyUnwritableFileKeepsConsole(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	svc, l := newService(Config{Level: "info", Console: true, JSON: true}, &out)
	defer svc.Close()

	svc.Apply(Config{Level: "info", Console: true, JSON: true, File: FileConfig{Enabled: true, Path: filepath.Join(blocker, "routined.log")}})
	l.Info("still here")
	if !strings.Contains(out.String(), "still here") {
		t.Fatalf("console lost after file error: %q", out.String())
	}
	if Stderr() != os.Stderr {
		t.Fatal("Stderr should be the process stderr")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		" DEBUG ": zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"nope":    zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in, zerolog.InfoLevel); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
