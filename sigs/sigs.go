// Package sigs translates OS signals into edge-triggered flags that the
// main loop polls once per pass. Handlers do not touch transfer state;
// everything observable happens when the loop reads a flag.
package sigs

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/svanichkin/pv/clock"
	"github.com/svanichkin/pv/logs"
)

// State holds the edge-triggered flags and the stop/resume bookkeeping.
// Flags are set by the signal goroutine and consumed by the main loop;
// PipeClosed is set by the transfer engine's write path instead.
type State struct {
	terminalResized atomic.Bool
	triggerExit     atomic.Bool
	pipeClosed      atomic.Bool
	suspendStderr   atomic.Bool
	skipNextResume  atomic.Bool
	reparseDisplay  atomic.Bool

	// clockMu serialises stop/resume edges against the main loop's
	// clock restart when the first byte arrives under wait mode.
	clockMu sync.Mutex
	elapsed *clock.Elapsed

	foreground func() bool

	ch   chan os.Signal
	done chan struct{}
}

// Install ignores SIGPIPE, registers handlers for the signals the loop
// cares about, and starts the goroutine that turns them into flags.
// The foreground callback reports whether the process group currently owns
// the terminal; it may be nil.
func Install(elapsed *clock.Elapsed, foreground func() bool) (*State, error) {
	s := &State{
		elapsed:    elapsed,
		foreground: foreground,
		ch:         make(chan os.Signal, 16),
		done:       make(chan struct{}),
	}

	// A broken output pipe is observed by the write path, never fatal
	// on its own.
	signal.Ignore(syscall.SIGPIPE)

	// SIGALRM exists only so that blocking writes return with an
	// interrupt status; the flag goroutine discards it.
	signal.Notify(s.ch,
		syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM,
		syscall.SIGWINCH, syscall.SIGTSTP, syscall.SIGCONT,
		syscall.SIGTTOU, syscall.SIGALRM, syscall.SIGUSR2)

	go s.run()
	return s, nil
}

func (s *State) run() {
	for {
		select {
		case <-s.done:
			return
		case sig := <-s.ch:
			s.handle(sig)
		}
	}
}

func (s *State) handle(sig os.Signal) {
	switch sig {
	case syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM:
		logs.Debug("termination signal: %v", sig)
		s.triggerExit.Store(true)
	case syscall.SIGWINCH:
		s.terminalResized.Store(true)
	case syscall.SIGTTOU:
		// We wrote to the terminal from the background. Stop writing,
		// wake the rest of the pipeline, and swallow the resume edge
		// that the wake generates.
		logs.Debug("background write to terminal - suspending stderr")
		s.suspendStderr.Store(true)
		s.skipNextResume.Store(true)
		_ = unix.Kill(0, unix.SIGCONT)
	case syscall.SIGTSTP:
		s.clockMu.Lock()
		s.elapsed.Stop(time.Now())
		s.clockMu.Unlock()
		// Deliver the default stop behaviour ourselves, since having
		// a handler installed suppresses it.
		_ = unix.Kill(unix.Getpid(), unix.SIGSTOP)
	case syscall.SIGCONT:
		if s.skipNextResume.Swap(false) {
			logs.Debug("resume edge consumed silently")
			s.clockMu.Lock()
			s.elapsed.Resume(time.Now())
			s.clockMu.Unlock()
			return
		}
		s.clockMu.Lock()
		s.elapsed.Resume(time.Now())
		s.clockMu.Unlock()
		// Layout may have changed while we were stopped.
		s.terminalResized.Store(true)
		if s.foreground == nil || s.foreground() {
			s.suspendStderr.Store(false)
		}
	case syscall.SIGUSR2:
		s.reparseDisplay.Store(true)
	case syscall.SIGALRM:
		// The handler only needs to exist; its delivery is what makes a
		// blocking write return early.
	}
}

// Close unregisters the handlers and stops the flag goroutine.
func (s *State) Close() {
	signal.Stop(s.ch)
	close(s.done)
}

// GuardClockRestart runs fn while stop/resume edges are held off, so a
// resume cannot interleave with a timer reset.
func (s *State) GuardClockRestart(fn func()) {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	fn()
}

// ConsumeResize returns true once per terminal-resize edge.
func (s *State) ConsumeResize() bool { return s.terminalResized.Swap(false) }

// ConsumeReparse returns true once per display-reparse request.
func (s *State) ConsumeReparse() bool { return s.reparseDisplay.Swap(false) }

// Exiting reports whether a termination signal has been received.
func (s *State) Exiting() bool { return s.triggerExit.Load() }

// StderrSuspended reports whether terminal output is currently suppressed.
func (s *State) StderrSuspended() bool { return s.suspendStderr.Load() }

// SetPipeClosed records that the output pipe was closed by the consumer.
func (s *State) SetPipeClosed() { s.pipeClosed.Store(true) }

// PipeClosed reports whether the output pipe has been closed.
func (s *State) PipeClosed() bool { return s.pipeClosed.Load() }

// CheckBackground clears the stderr suspension if the process has become
// the foreground process group again.
func (s *State) CheckBackground() {
	if s.suspendStderr.Load() && s.foreground != nil && s.foreground() {
		s.suspendStderr.Store(false)
	}
}
