package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSetupFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	defer slog.SetDefault(prev)

	Setup(&buf, slog.LevelInfo)
	Log("hidden", slog.LevelDebug)
	Log("shown", slog.LevelInfo, "task", "t1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record written at info level:\n%s", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "task=t1") {
		t.Fatalf("info record missing:\n%s", out)
	}
}
