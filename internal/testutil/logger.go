package testutil

import (
	"log/slog"
	"os"
	"testing"
)

// NewLogger returns a debug-level logger capturing into a SafeBuffer. The
// output is echoed to the test log when LIVEXPR_TEST_LOGS=true.
func NewLogger(t *testing.T) (*slog.Logger, *SafeBuffer) {
	t.Helper()

	buf := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	t.Cleanup(func() {
		if os.Getenv("LIVEXPR_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), buf.String())
		}
	})
	return logger, buf
}
