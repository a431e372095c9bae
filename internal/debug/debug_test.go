package debug

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogfDisabledByDefault(t *testing.T) {
	SetDebugOutput(nil)
	if Enabled() {
		t.Fatal("debug output should be disabled by default")
	}
	// Must not panic with a nil writer.
	Logf("parse %s", "flipper.sol")
}

func TestLogfWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	SetDebugOutput(&buf)
	defer SetDebugOutput(nil)

	Logf("lowering %d functions", 3)

	out := buf.String()
	if !strings.Contains(out, "lowering 3 functions") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !Enabled() {
		t.Error("Enabled should report true with a writer set")
	}
}

func TestInitDebugLogFile(t *testing.T) {
	path, err := InitDebugLogFile()
	if err != nil {
		t.Fatalf("InitDebugLogFile failed: %v", err)
	}
	defer CloseDebugLog()

	Logf("emit %s", "Flipper.contract")
	CloseDebugLog()

	if path == "" {
		t.Error("expected a log file path")
	}
	if Enabled() {
		t.Error("output should be disabled after CloseDebugLog")
	}
}
