// pv is a pipeline monitor: insert it between two processes in a shell
// pipeline and it copies its input to its output while showing progress,
// throughput and an estimated completion time on the terminal.
package main

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/svanichkin/pv/clock"
	"github.com/svanichkin/pv/conf"
	"github.com/svanichkin/pv/display"
	"github.com/svanichkin/pv/logs"
	"github.com/svanichkin/pv/sigs"
	"github.com/svanichkin/pv/transfer"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	control, err := conf.ParseCLI(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName(), err)
		return 1
	}

	// With no declared size, derive one from the input files where
	// possible, so the display can show real percentages.
	if control.Size == 0 {
		control.Size = guessTotalSize(control)
	}

	outFD, outputIsPipe, closeOutput, err := openOutput(control)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName(), err)
		return conf.ExitAccess
	}
	defer closeOutput()

	var elapsed clock.Elapsed
	signals, err := sigs.Install(&elapsed, display.InForeground)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: signal setup failed: %v\n", programName(), err)
		return conf.ExitSignal
	}
	defer signals.Close()

	disp := display.New(control)
	disp.SetSuspendedCheck(signals.StderrSuspended)
	disp.SetForegroundCheck(display.InForeground)

	restoreTTY := enableTOSTOP()
	defer restoreTTY()

	engine := transfer.New(control, outFD, outputIsPipe)
	engine.SetErrorSink(disp.Errorf)
	engine.SetPipeClosedHook(signals.SetPipeClosed)
	if disp.ShowingLastWritten {
		engine.CollectLastWritten(disp.LastWrittenBytes())
	}
	engine.CollectPreviousLine(disp.ShowingPreviousLine)

	loop := &mainLoop{
		control:      control,
		engine:       engine,
		disp:         disp,
		signals:      signals,
		elapsed:      &elapsed,
		outFD:        outFD,
		outputIsPipe: outputIsPipe,
	}

	exitStatus := loop.run()

	if err := engine.FinishOutput(); err != nil {
		disp.Errorf("output truncation failed: %v", err)
		exitStatus |= conf.ExitTransfer
	}

	return exitStatus
}

func programName() string {
	if len(os.Args) > 0 && os.Args[0] != "" {
		return os.Args[0]
	}
	return "pv"
}

// openOutput resolves the output descriptor: standard output by default, a
// named file with -o, or nothing at all when discarding input.
func openOutput(control *conf.Control) (fd int, isPipe bool, closer func(), err error) {
	closer = func() {}

	if control.DiscardInput {
		return -1, false, closer, nil
	}

	fd = int(os.Stdout.Fd())
	if control.OutputPath != "" && control.OutputPath != "-" {
		f, openErr := os.OpenFile(control.OutputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if openErr != nil {
			return -1, false, closer, fmt.Errorf("%s: %w", control.OutputPath, openErr)
		}
		fd = int(f.Fd())
		closer = func() { f.Close() }
	}

	var st unix.Stat_t
	if statErr := unix.Fstat(fd, &st); statErr == nil {
		if st.Mode&unix.S_IFMT == unix.S_IFIFO {
			isPipe = true
			logs.Debug("output is a pipe")
			// Writes to a full pipe must not block past our deadline;
			// the bounded-write loop handles EAGAIN as transient.
			_ = unix.SetNonblock(fd, true)
		}
	}

	// Derive the default buffer size from the output block size.
	if control.TargetBufferSize == 0 {
		if st.Blksize > 0 {
			size := int(st.Blksize) * 32
			if size > conf.BufferSizeMax {
				size = conf.BufferSizeMax
			}
			control.TargetBufferSize = size
		} else {
			control.TargetBufferSize = conf.DefaultBufferSize
		}
	}

	return fd, isPipe, closer, nil
}

// interval helpers for the loop deadlines.
func firstUpdateDelay(control *conf.Control) time.Duration {
	if control.DelayStart > control.Interval {
		return control.DelayStart
	}
	return control.Interval
}
