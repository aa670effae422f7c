package tool

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecTool(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	e := NewExecTool("HEBILLAS_TEST=1")

	res, err := Shell(context.Background(), e, dir, "echo $HEBILLAS_TEST; pwd")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "1\n")

	res, err = Shell(context.Background(), e, dir, "echo boom >&2; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "boom\n", res.Stderr)
}

func TestExecToolMissingBinary(t *testing.T) {
	_, err := NewExecTool().Run(context.Background(), "", "hebillas-no-such-binary")
	assert.Error(t, err)
}

func TestFake(t *testing.T) {
	f := &Fake{Results: map[string]Result{
		"bundle install": {ExitCode: 1, Stderr: "offline"},
	}}

	res, err := f.Run(context.Background(), "/app", "bundle", "install")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)

	res, err = f.Run(context.Background(), "/app", "bin/rails", "generate", "devise:install")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)

	calls := f.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "bin/rails generate devise:install", calls[1].String())

	f.Err = errors.New("denied")
	_, err = f.Run(context.Background(), "", "ls")
	assert.EqualError(t, err, "denied")
}
