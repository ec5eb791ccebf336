package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/livexpr/internal/app"
)

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args []string
		want *app.Config
	}{
		{
			name: "defaults",
			args: nil,
			want: &app.Config{LogFormat: "text", LogLevel: "info"},
		},
		{
			name: "flags and positional paths",
			args: []string{"-policy", "a.hcl", "-policy", "dir", "-log-format", "JSON", "-check", "b.yaml"},
			want: &app.Config{
				PolicyPaths: []string{"a.hcl", "dir", "b.yaml"},
				LogFormat:   "json",
				LogLevel:    "info",
				CheckOnly:   true,
			},
		},
		{
			name: "trace forces debug",
			args: []string{"-log-level", "error", "-trace", "-metrics-port", "9090"},
			want: &app.Config{LogFormat: "text", LogLevel: "debug", Trace: true, MetricsPort: 9090},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// --- Act ---
			cfg, shouldExit, err := Parse(tc.args, &bytes.Buffer{})

			// --- Assert ---
			require.NoError(t, err)
			assert.False(t, shouldExit)
			if diff := cmp.Diff(tc.want, cfg); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_Help(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse([]string{"-help"}, out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
	assert.Contains(t, out.String(), "-metrics-port")
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	cases := map[string][]string{
		"unknown flag":        {"-nope"},
		"bad log format":      {"-log-format", "xml"},
		"bad log level":       {"-log-level", "loud"},
		"check without paths": {"-check"},
		"port out of range":   {"-metrics-port", "70000"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg, shouldExit, err := Parse(args, &bytes.Buffer{})

			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr), "want an ExitError, got %v", err)
			assert.Equal(t, 2, exitErr.Code)
			assert.False(t, shouldExit)
			assert.Nil(t, cfg)
		})
	}
}
