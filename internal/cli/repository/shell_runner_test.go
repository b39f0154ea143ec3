package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellRunnerRun(t *testing.T) {
	runner := ShellRunner{}

	err := runner.Run("true")
	require.NoError(t, err)

	err = runner.Run("exit 3")
	assert.Error(t, err)
}
