/*
Running external programs (chroot, mke2fs) with context cancellation
and categorized errors.
*/
package cmdrun

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/labimg"
)

type Runner interface {
	// Run the command to completion.  A non-zero exit is an error.
	Run(ctx context.Context, name string, args ...string) error

	// Find a program on the $PATH, like exec.LookPath.
	LookPath(name string) (string, error)
}

var _ Runner = ExecRunner{}

// Runs real processes.  Their output is copied to Stdout and Stderr (discarded if nil).
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (r ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (err error) {
	defer RequireErrorHasCategory(&err, labimg.ErrorCategory(""))
	cmdline := strings.Join(append([]string{name}, args...), " ")

	cmd := exec.Command(name, args...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if err := cmd.Start(); err != nil {
		return Errorf(labimg.ErrBuild, "command %q failed to start: %s", cmdline, err)
	}

	// Set up reaction to ctx.done: send a sig to the child proc.
	//  (You couldn't do it until after cmd.Start -- the Process handle doesn't exist until then.)
	exited := make(chan struct{})
	defer close(exited)
	go func() {
		select {
		case <-exited:
			return
		case <-ctx.Done():
		}
		cmd.Process.Signal(os.Interrupt)
		select {
		case <-exited:
		case <-time.After(100 * time.Millisecond):
			cmd.Process.Signal(os.Kill)
		}
	}()

	code, err := waitFor(cmd)
	if ctx.Err() != nil {
		return labimg.CheckCancelled(ctx)
	}
	if err != nil {
		return Errorf(labimg.ErrBuild, "command %q: %s", cmdline, err)
	}
	if code != 0 {
		return ErrorDetailed(labimg.ErrBuild,
			fmt.Sprintf("command %q exited with code %d", cmdline, code),
			map[string]string{"cmd": cmdline, "code": strconv.Itoa(code)},
		)
	}
	return nil
}

func waitFor(cmd *exec.Cmd) (int, error) {
	err := cmd.Wait()
	if err == nil {
		return 0, nil
	}
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return -1, Errorf(labimg.ErrBuild, "unknown wait error: %s", err)
	}
	waitStatus, ok := exitErr.ProcessState.Sys().(syscall.WaitStatus)
	if !ok {
		return -1, Errorf(labimg.ErrBuild, "unknown process state implementation %T", exitErr.ProcessState.Sys())
	}
	if waitStatus.Exited() {
		return waitStatus.ExitStatus(), nil
	} else if waitStatus.Signaled() {
		return int(waitStatus.Signal()) + 128, Errorf(labimg.ErrBuild, "process killed with signal %d", waitStatus.Signal())
	} else {
		return -1, Errorf(labimg.ErrBuild, "unknown process wait status (%#v)", waitStatus)
	}
}
