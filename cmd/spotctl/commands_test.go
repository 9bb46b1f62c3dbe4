package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("market:\n  granularity: 60\n"), 0644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--config", path}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestTTL(t *testing.T) {
	out, err := execute(t, "ttl")
	require.NoError(t, err)
	assert.Contains(t, out, "(until ")
	assert.Contains(t, out, ":00)", "hourly granularity from the config ends on the hour")

	_, err = execute(t, "ttl", "--granularity", "30")
	assert.ErrorContains(t, err, "must be 15 or 60")
}

func TestOptimalValidatesFlags(t *testing.T) {
	_, err := execute(t, "optimal", "--hours", "0")
	assert.ErrorContains(t, err, "--hours")
	optimalHours = 2
}
