package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/teslashibe/go-lumen/pkg/persona"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LUMEN_DATA_DIR", dir)
	t.Setenv("LUMEN_FACE_MODEL", filepath.Join(dir, "missing.onnx"))
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	base := []string{"--simulate", "--config", filepath.Join(dir, "none.yaml")}
	rootCmd.SetArgs(append(base, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPersonaCommand(t *testing.T) {
	out, err := run(t, "persona")
	if err != nil {
		t.Fatal(err)
	}
	var st persona.State
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("output %q: %v", out, err)
	}
	if st.Curiosity != persona.Neutral || st.Patience != persona.Neutral {
		t.Errorf("state = %+v", st)
	}
}

func TestGPSCommand(t *testing.T) {
	out, err := run(t, "gps")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"fix": true`) {
		t.Errorf("output = %s", out)
	}
}

func TestMemoryRejectsBadLimit(t *testing.T) {
	if _, err := run(t, "memory", "--limit", "0"); err == nil {
		t.Error("expected an error for --limit 0")
	}
	memoryLimit = 20
}

func TestEnrollNeedsName(t *testing.T) {
	if _, err := run(t, "people", "enroll"); err == nil {
		t.Error("expected an argument error")
	}
}
