package systemutil

import (
	"errors"
	"fmt"
	"log"
	"os/exec"

	"github.com/hpcloud/tail"
)

// CmdExec runs a shell command and returns its combined stdout. When logPath
// is set the output is also teed into that file.
func CmdExec(cmdStr string, logPath string) (out string, err error) {
	if len(cmdStr) == 0 {
		return "", errors.New("no command string provided")
	}

	if len(logPath) > 0 {
		cmdStr += " 2>&1 | tee -a " + logPath
	}
	// `set -o pipefail` forces the original exit code through the pipe
	output, err := exec.Command("bash", "-c", "set -o pipefail && "+cmdStr).Output()
	out = string(output)

	return
}

// StreamLog tails a file to stdout until the process exits.
func StreamLog(path string) {
	t, err := tail.TailFile(path, tail.Config{Follow: true, ReOpen: true})
	if err != nil {
		log.Printf("error: %v\n", err)
		return
	}
	for line := range t.Lines {
		fmt.Println(line.Text)
	}
}
