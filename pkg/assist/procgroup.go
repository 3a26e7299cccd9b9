package assist

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// killGrace is the pause between SIGTERM and SIGKILL.
const killGrace = 100 * time.Millisecond

// processGroup kills the whole process tree of a command on cancellation:
// claude and tesseract may spawn helpers that outlive the direct child.
type processGroup struct {
	cmd  *exec.Cmd
	done chan struct{}
	once sync.Once
	err  error
}

func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// newProcessGroupCleanup watches cancelCh for a started cmd. Wait must be called.
func newProcessGroupCleanup(cmd *exec.Cmd, cancelCh <-chan struct{}) *processGroup {
	pg := &processGroup{cmd: cmd, done: make(chan struct{})}
	go func() {
		select {
		case <-cancelCh:
			pg.kill()
		case <-pg.done:
		}
	}()
	return pg
}

// kill sends SIGTERM, then SIGKILL after killGrace. ESRCH means the group is gone.
func (pg *processGroup) kill() {
	if pg.cmd.Process == nil {
		return
	}
	pgid := -pg.cmd.Process.Pid
	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
		return
	}
	time.Sleep(killGrace)
	if err := syscall.Kill(pgid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		fmt.Printf("[assist] SIGKILL failed for pgid %d: %v\n", pgid, err)
	}
}

// Wait waits for the command and stops the cancel watcher. Repeated calls are safe.
func (pg *processGroup) Wait() error {
	pg.once.Do(func() {
		pg.err = pg.cmd.Wait()
		close(pg.done)
		if pg.err != nil {
			pg.err = fmt.Errorf("command wait: %w", pg.err)
		}
	})
	return pg.err
}
