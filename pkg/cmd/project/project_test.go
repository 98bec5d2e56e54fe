package project

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectCommand(t *testing.T) {
	run := func() string {
		var out bytes.Buffer
		cmd := NewProjectCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{
			"--circuit", "silverstone", "--laps", "20", "--hero", "ham",
			"--at-lap", "5", "--seed", "3", "--iterations", "50", "--workers", "2",
		})
		require.NoError(t, cmd.ExecuteContext(context.Background()))
		return out.String()
	}
	got := run()
	assert.Contains(t, got, "Silverstone Circuit, lap 5 of 20")
	assert.Contains(t, got, "50 simulated races from lap 5")
	assert.Contains(t, got, "LEWIS HAMILTON")
	assert.Equal(t, got, run(), "fixed seed gives the same output")
}
