package process

import (
	"bytes"
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateCreated, "created"},
		{StateRunning, "running"},
		{StateExited, "exited"},
		{StateKilled, "killed"},
		{State(42), "unknown(42)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.state.String())
	}
}

func TestNewProcess(t *testing.T) {
	proc := NewProcess("test-id", "test-process", exec.Command("echo", "hello"))

	assert.Equal(t, "test-id", proc.ID)
	assert.Equal(t, StateCreated, proc.State())
	assert.Equal(t, -1, proc.ExitCode())
	assert.False(t, proc.IsRunning())
	assert.False(t, proc.HasExited())
	assert.ErrorIs(t, proc.Kill(), ErrProcessNotStarted)
}

func TestSupervisor_StartAndExit(t *testing.T) {
	sup := NewSupervisor()
	defer sup.Shutdown(time.Second)

	var out bytes.Buffer
	cmd := exec.Command("echo", "hello")
	cmd.Stdout = &out

	proc, err := sup.Start("echo", cmd)
	require.NoError(t, err)
	assert.NotEmpty(t, proc.ID)
	assert.Nil(t, proc.Stdout)
	<-proc.Done()

	assert.Equal(t, "hello\n", out.String())
	assert.Equal(t, 0, proc.ExitCode())
	assert.True(t, proc.HasExited())
}

func TestSupervisor_ExitCallback(t *testing.T) {
	exited := make(chan string, 1)
	sup := NewSupervisor(WithProcessExitCallback(func(p *Process) {
		exited <- p.Name
	}))
	defer sup.Shutdown(time.Second)

	_, err := sup.Start("true", exec.Command("true"))
	require.NoError(t, err)

	select {
	case name := <-exited:
		assert.Equal(t, "true", name)
	case <-time.After(5 * time.Second):
		t.Fatal("exit callback not called")
	}
}

func TestSupervisor_Shutdown(t *testing.T) {
	sup := NewSupervisor()

	proc, err := sup.Start("sleep", exec.Command("sleep", "30"))
	require.NoError(t, err)
	assert.True(t, proc.IsRunning())

	sup.Shutdown(time.Second)

	assert.True(t, proc.HasExited())
	_, err = sup.Start("late", exec.Command("true"))
	assert.ErrorIs(t, err, ErrSupervisorShutdown)
}

func TestSupervisor_StopUnknown(t *testing.T) {
	sup := NewSupervisor()
	assert.ErrorIs(t, sup.Stop("missing", time.Second), ErrProcessNotFound)
}

func TestSupervisor_StartFailure(t *testing.T) {
	sup := NewSupervisor()

	_, err := sup.Start("missing", exec.Command("definitely-not-a-real-binary-xyz"))
	assert.Error(t, err)
	assert.Equal(t, 0, sup.Count())
}

func TestExecRunner_Run(t *testing.T) {
	r := NewExecRunner()

	res, err := r.Run(context.Background(), Command{Name: "cat", Stdin: "from stdin"})
	require.NoError(t, err)
	assert.Equal(t, "from stdin", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
	assert.Positive(t, res.Duration)
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	r := NewExecRunner()

	res, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo oops >&2; exit 3"}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "oops\n", res.Stderr)
}

func TestExecRunner_Errors(t *testing.T) {
	r := NewExecRunner()

	_, err := r.Run(context.Background(), Command{})
	assert.Error(t, err)

	_, err = r.Run(context.Background(), Command{Name: "definitely-not-a-real-binary-xyz"})
	assert.Error(t, err)
}

func TestCommand_String(t *testing.T) {
	c := Command{Name: "python3", Args: []string{"-m", "pyflakes"}}
	assert.Equal(t, "python3 -m pyflakes", c.String())
}
