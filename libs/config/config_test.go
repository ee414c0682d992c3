package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalars(t *testing.T) {
	t.Setenv("CFG_STR", "  value ")
	t.Setenv("CFG_INT", "42")
	t.Setenv("CFG_BAD_INT", "x")
	t.Setenv("CFG_BOOL", "yes")
	t.Setenv("CFG_DUR", "90s")
	t.Setenv("CFG_DUR_SECS", "5")
	t.Setenv("CFG_LIST", "a, b,,c ")

	assert.Equal(t, "value", String("CFG_STR", "x"))
	assert.Equal(t, "fallback", String("CFG_MISSING", "fallback"))
	assert.Equal(t, 42, Int("CFG_INT", 1, 0))
	assert.Equal(t, 7, Int("CFG_INT", 7, 100))
	assert.Equal(t, 3, Int("CFG_BAD_INT", 3, 0))
	assert.True(t, Bool("CFG_BOOL", false))
	assert.True(t, Bool("CFG_MISSING", true))
	assert.Equal(t, 90*time.Second, Duration("CFG_DUR", time.Second))
	assert.Equal(t, 5*time.Second, Duration("CFG_DUR_SECS", time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, List("CFG_LIST", ""))
}

func TestRequiredAndPort(t *testing.T) {
	_, err := RequiredString("CFG_REQUIRED_MISSING")
	assert.Error(t, err)

	t.Setenv("CFG_PORT", "99999")
	_, err = Port("CFG_PORT", "8080")
	assert.Error(t, err)

	p, err := Port("CFG_PORT_MISSING", "8085")
	require.NoError(t, err)
	assert.Equal(t, "8085", p)
}

func TestLocation(t *testing.T) {
	loc, err := Location("CFG_TZ_MISSING", "Europe/Paris")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())

	t.Setenv("CFG_TZ", "Mars/Olympus")
	_, err = Location("CFG_TZ", "UTC")
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CFG_FROM_FILE=hello\n"), 0o600))
	t.Setenv("CFG_FROM_FILE", "")
	os.Unsetenv("CFG_FROM_FILE")

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "hello", String("CFG_FROM_FILE", ""))
}
