package internal

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

// TestInitLogging checks messages carry the world tag after the timestamp.
func TestInitLogging(t *testing.T) {
	var buf bytes.Buffer
	InitLogging(&buf, "Aston")
	t.Cleanup(func() { InitLogging(nil, "") })

	log.Printf("month %d", 3)
	if got := buf.String(); !strings.HasSuffix(got, " [Aston] month 3\n") {
		t.Errorf("unexpected log line %q", got)
	}

	buf.Reset()
	InitLogging(&buf, "")
	log.Print("plain")
	if got := buf.String(); strings.Contains(got, "[") || !strings.HasSuffix(got, " plain\n") {
		t.Errorf("unexpected untagged line %q", got)
	}
}
