package repository

import (
	"github.com/appforge/appforge-go/pkg/systemutil"
)

// ShellRunner executes shell commands for CLI usecases.
type ShellRunner struct{}

func (runner ShellRunner) Run(cmd string) error {
	_, err := systemutil.CmdExec(cmd, "")
	return err
}
