package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_PanicRecovery(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// A policy with a syntax error makes app.NewApp panic while loading.
	invalidHCL := `
		dispose_func "Open" {
	`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "policy.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(invalidHCL), 0o600), "failed to set up test file")

	out := &bytes.Buffer{}

	// --- Act ---
	runErr := run(context.Background(), out, []string{"-check", filePath})

	// --- Assert ---
	require.Error(t, runErr, "run() should have returned an error after recovering from a panic")
	require.Contains(t, runErr.Error(), "application startup panicked")
	require.Contains(t, runErr.Error(), "failed to parse")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_CheckValidPolicy(t *testing.T) {
	t.Parallel()

	policy := `
defaults {
  dispose_constructed_objects = false
}
ignore_property_changes "Person" "Name" {}
`
	filePath := filepath.Join(t.TempDir(), "policy.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(policy), 0o600))

	out := &bytes.Buffer{}
	require.NoError(t, run(context.Background(), out, []string{"-check", "-policy", filePath}))
	require.Contains(t, out.String(), "policy OK: 1 path(s), dispose constructed objects by default: false")
}

func TestRun_Demo(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	require.NoError(t, run(context.Background(), out, []string{"-log-level", "error"}))

	s := out.String()
	require.Contains(t, s, "name length: 4")
	require.Contains(t, s, "name length: 8")
	require.Contains(t, s, "item count reached 3")
}
