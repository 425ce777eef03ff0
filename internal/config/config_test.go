package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `# cbt
tick-interval 50ms
color never

[run]
tree /srv/trees/patrol.yaml
  stop-on-failure yes

[validate]
format yaml
`

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	c, err := LoadFromReader(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Empty(t, c.Warnings)

	assert.Equal(t, map[string]string{"tick-interval": "50ms", "color": "never"}, c.Global)

	v, ok := c.GetCommandOption("run", "tree")
	require.True(t, ok)
	assert.Equal(t, "/srv/trees/patrol.yaml", v)

	// Falls back to global.
	v, ok = c.GetCommandOption("run", "color")
	require.True(t, ok)
	assert.Equal(t, "never", v)

	_, ok = c.GetCommandOption("validate", "tree")
	assert.False(t, ok)
	_, ok = c.GetGlobalOption("tree")
	assert.False(t, ok)
}

func TestLoadFromReader_Empty(t *testing.T) {
	t.Parallel()

	c, err := LoadFromReader(strings.NewReader("\n# nothing\n"))
	require.NoError(t, err)
	assert.Empty(t, c.Global)
	assert.Empty(t, c.Commands)
	assert.Empty(t, c.Warnings)
}

func TestLoadFromReader_Warnings(t *testing.T) {
	t.Parallel()

	c, err := LoadFromReader(strings.NewReader(`tick-interval soon
verbose true
color sometimes
[run]
max-ticks many
[validate]
bogus 1
`))
	require.NoError(t, err)
	assert.Equal(t, []string{
		`global option "color": expected one of auto|always|never, got "sometimes"`,
		`global option "tick-interval": expected duration, got "soon"`,
		`option "max-ticks" in [run]: expected int, got "many"`,
		`unknown global option: "verbose" (value: "true")`,
		`unknown option for command "validate": "bogus" (value: "1")`,
	}, c.Warnings)
}

func TestLoadFromPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	c, err := LoadFromPath(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, c.Global)

	path := filepath.Join(dir, "config")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	c, err = LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "50ms", c.Global["tick-interval"])

	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(path, link))
	_, err = LoadFromPath(link)
	require.ErrorContains(t, err, "symlink not allowed")
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(EnvConfig, "/etc/cbt.conf")
	p, err := GetConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/etc/cbt.conf", p)

	home := t.TempDir()
	t.Setenv(EnvConfig, "")
	t.Setenv("HOME", home)
	p, err = GetConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".cbt", "config"), p)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("max-ticks 7\n"), 0o644))
	t.Setenv(EnvConfig, path)

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7", c.Global["max-ticks"])
}

func TestSetOptions(t *testing.T) {
	t.Parallel()

	c := NewConfig()
	c.SetGlobalOption("color", "always")
	c.SetCommandOption("run", "color", "never")
	v, _ := c.GetCommandOption("run", "color")
	assert.Equal(t, "never", v)
	v, _ = c.GetCommandOption("validate", "color")
	assert.Equal(t, "always", v)
}

func TestParseBool(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"true", "1", "YES", "on"} {
		b, err := parseBool(s)
		require.NoError(t, err, s)
		assert.True(t, b, s)
	}
	for _, s := range []string{"false", "0", "No", "off"} {
		b, err := parseBool(s)
		require.NoError(t, err, s)
		assert.False(t, b, s)
	}
	_, err := parseBool("maybe")
	assert.Error(t, err)
}

func TestSettings(t *testing.T) {
	t.Setenv("CBT_TICK_INTERVAL", "")
	os.Unsetenv("CBT_TICK_INTERVAL")
	t.Setenv("CBT_METRICS_ADDR", "127.0.0.1:9100")

	c, err := LoadFromReader(strings.NewReader(sample + "\n[run]\nmax-ticks 40\nlog.max-files 2\n"))
	require.NoError(t, err)

	s, err := DefaultSchema().Settings(c, "run")
	require.NoError(t, err)
	assert.Equal(t, Settings{
		TickInterval:  50 * time.Millisecond,
		MaxTicks:      40,
		StopOnFailure: true,
		Tree:          "/srv/trees/patrol.yaml",
		Color:         "never",
		MetricsAddr:   "127.0.0.1:9100",
		LogLevel:      "info",
		LogMaxSizeMB:  10,
		LogMaxFiles:   2,
	}, s)

	s, err = DefaultSchema().Settings(nil, "")
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, s.TickInterval)
	assert.Equal(t, "auto", s.Color)
	assert.False(t, s.StopOnFailure)
}

func TestSettings_BadEnv(t *testing.T) {
	t.Setenv("CBT_TICK_INTERVAL", "fast")

	_, err := DefaultSchema().Settings(NewConfig(), "run")
	require.EqualError(t, err, `option "tick-interval": expected duration, got "fast"`)
}
