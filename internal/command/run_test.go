package command

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-cbt/internal/config"
	"github.com/joeycumines/go-cbt/internal/driver"
)

const failingTree = `name: failing
root:
  name: Root
  type: sequence
  children:
    - name: Nope
      type: action
      kind: fail
`

func writeTree(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunCommand_Demo(t *testing.T) {
	t.Parallel()

	stdout, stderr, err := run(t, nil, "run", "-interval", "1ms", "-color", "never")
	require.NoError(t, err, stderr)

	assert.Contains(t, stdout, "action Move to position (1,2) -> running\n")
	assert.Contains(t, stdout, "action Pick up Orange -> success\n")
	assert.Contains(t, stdout, "control Seq1 -> success\n")
	assert.Contains(t, stdout, "Seq1                      sequence   exit")
	assert.Contains(t, stdout, "  Pick up Orange          action     exit")
	assert.Contains(t, stdout, "\npickandplace: success after ")
	assert.NotContains(t, stdout, "\x1b[")

	// Each transition is printed once.
	assert.Equal(t, 1, strings.Count(stdout, "Move to position (1,2) -> running"))

	assert.Contains(t, stderr, "running tree")
	assert.Contains(t, stderr, "tree=pickandplace")
}

func TestRunCommand_Color(t *testing.T) {
	t.Parallel()

	stdout, _, err := run(t, nil, "run", "-interval", "1ms", "-color", "always")
	require.NoError(t, err)
	assert.Contains(t, stdout, "\x1b[")
}

func TestRunCommand_TreeFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join("..", "example", "pickandplace", "testdata", "pickandplace.yaml")
	stdout, _, err := run(t, nil, "run", "-tree", path, "-interval", "1ms", "-color", "never")
	require.NoError(t, err)
	assert.Contains(t, stdout, "condition Gripper empty -> success")
	assert.Contains(t, stdout, "\npick-and-place: success after ")
}

func TestRunCommand_Failure(t *testing.T) {
	t.Parallel()

	path := writeTree(t, "failing.yaml", failingTree)

	stdout, _, err := run(t, nil, "run", "-tree", path, "-interval", "1ms", "-stop-on-failure", "-color", "never")
	require.EqualError(t, err, "tree failing finished failure")
	assert.Regexp(t, `failing: failure after \d+ ticks`, stdout)

	_, _, err = run(t, nil, "run", "-tree", path, "-interval", "1ms", "-max-ticks", "5")
	require.ErrorIs(t, err, driver.ErrTickLimit)
}

func TestRunCommand_ConfigFallback(t *testing.T) {
	t.Parallel()

	path := writeTree(t, "failing.yaml", failingTree)
	cfg, err := config.LoadFromReader(strings.NewReader(
		"tick-interval 1ms\ncolor never\n[run]\nstop-on-failure true\ntree " + path + "\n"))
	require.NoError(t, err)
	require.Empty(t, cfg.Warnings)

	stdout, _, err := run(t, cfg, "run")
	require.EqualError(t, err, "tree failing finished failure")
	assert.Regexp(t, `failing: failure after \d+ ticks`, stdout)
}

func TestRunCommand_LogFileAndMetrics(t *testing.T) {
	t.Parallel()

	logFile := filepath.Join(t.TempDir(), "logs", "cbt.log")
	_, stderr, err := run(t, nil, "run",
		"-interval", "1ms",
		"-color", "never",
		"-log-file", logFile,
		"-log-level", "debug",
		"-metrics-addr", "127.0.0.1:0",
	)
	require.NoError(t, err)
	assert.Contains(t, stderr, "metrics server listening")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"running tree"`)
	assert.Contains(t, string(data), `"msg":"root tick"`)
}

func TestRunCommand_Errors(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		args []string
		want string
	}{
		{"args", []string{"run", "extra"}, "unexpected arguments"},
		{"log level", []string{"run", "-log-level", "loud"}, "invalid log level: loud"},
		{"missing tree", []string{"run", "-tree", "/does/not/exist.yaml"}, "open tree file"},
		{"bad metrics addr", []string{"run", "-metrics-addr", "256.0.0.1:bad"}, "metrics listen"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := run(t, nil, tc.args...)
			require.ErrorContains(t, err, tc.want)
		})
	}
}
