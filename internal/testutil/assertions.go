package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertLogged checks that a record with the given message was logged.
func AssertLogged(t *testing.T, buf *SafeBuffer, msg string) {
	t.Helper()
	require.True(t, strings.Contains(buf.String(), "msg=\""+msg+"\"") || strings.Contains(buf.String(), "msg="+msg),
		"expected a %q record in the log output", msg)
}

// CountLogged returns how many records with the given message were logged.
func CountLogged(buf *SafeBuffer, msg string) int {
	out := buf.String()
	if strings.Contains(msg, " ") {
		return strings.Count(out, "msg=\""+msg+"\"")
	}
	return strings.Count(out, "msg="+msg+" ")
}
