package main

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/svanichkin/pv/calc"
	"github.com/svanichkin/pv/clock"
	"github.com/svanichkin/pv/conf"
	"github.com/svanichkin/pv/display"
	"github.com/svanichkin/pv/logs"
	"github.com/svanichkin/pv/sigs"
	"github.com/svanichkin/pv/transfer"
)

// rateBurstWindow is the maximum accumulable rate-limit budget, as a
// multiple of the configured rate.
const rateBurstWindow = 5

// drainPause is how long to sleep when everything has been written but
// the consumer has not yet drained the output pipe.
const drainPause = 50 * time.Millisecond

// mainLoop orchestrates one transfer: readiness, one engine pass,
// accounting, input-file advance, and the periodic display refresh.
type mainLoop struct {
	control      *conf.Control
	engine       *transfer.Engine
	disp         *display.Display
	signals      *sigs.State
	elapsed      *clock.Elapsed
	outFD        int
	outputIsPipe bool

	calc *calc.Calc

	totalWritten          int64
	transferred           int64
	writtenButNotConsumed int64
	elapsedSeconds        float64
}

// run executes the transfer loop until input and output are exhausted and
// a final display update has been produced. Returns the exit status bits.
func (l *mainLoop) run() int {
	control := l.control
	exitStatus := 0

	l.calc = calc.New(control.RateWindow)

	var limiter *rate.Limiter
	if control.RateLimit > 0 {
		burst := control.RateLimit * rateBurstWindow
		limiter = rate.NewLimiter(rate.Limit(control.RateLimit), int(burst))
		// Start with an empty budget; grants accumulate from here.
		limiter.AllowN(time.Now(), int(burst))
	}

	eofIn, eofOut := false, false
	finalUpdate := false
	waiting := control.Wait

	l.elapsed.Start(time.Now())
	nextUpdate := time.Now().Add(firstUpdateDelay(control))

	// Open the first readable input.
	fileIdx := 0
	inputFD := -1
	for inputFD < 0 && fileIdx < len(control.Files) {
		inputFD = openInput(control, fileIdx, -1, l.disp, &exitStatus)
		if inputFD < 0 {
			fileIdx++
		}
	}
	if inputFD < 0 {
		return exitStatus
	}
	adviseInput(control, inputFD)
	l.engine.SetFileName(control.Files[fileIdx])
	if l.outFD >= 0 {
		applyDirectIO(control, l.outFD)
	}

	for !(eofIn && eofOut) || !finalUpdate {
		if l.signals.Exiting() {
			break
		}

		var cansend int64
		if limiter != nil {
			if tokens := limiter.TokensAt(time.Now()); tokens > 0 {
				cansend = int64(tokens)
			}
		}

		// Under stop-at-size, never pass the declared size.
		if control.Size > 0 && control.StopAtSize {
			if control.Size < l.totalWritten+cansend ||
				(cansend == 0 && control.RateLimit == 0) {
				cansend = control.Size - l.totalWritten
				if cansend <= 0 {
					logs.Debug("write limit reached - setting EOF flags")
					eofIn = true
					eofOut = true
				}
			}
		}

		var written, linesWritten int64
		if control.Size > 0 && control.StopAtSize && cansend <= 0 && eofIn && eofOut {
			written = 0
		} else {
			written = l.engine.Transfer(inputFD, &eofIn, &eofOut, cansend, &linesWritten)
		}

		if written < 0 {
			// Fatal write error; the engine has already reported it.
			return exitStatus | l.engine.ExitStatus()
		}

		if control.LineMode {
			l.totalWritten += linesWritten
			if limiter != nil && linesWritten > 0 {
				limiter.AllowN(time.Now(), int(linesWritten))
			}
		} else {
			l.totalWritten += written
			if limiter != nil && written > 0 {
				limiter.AllowN(time.Now(), int(written))
			}
		}

		l.updateConsumedAccounting()

		// Advance to the next input when the current one is exhausted.
		for eofIn && eofOut && fileIdx < len(control.Files)-1 {
			fileIdx++
			inputFD = openInput(control, fileIdx, inputFD, l.disp, &exitStatus)
			if inputFD >= 0 {
				eofIn = false
				eofOut = false
				adviseInput(control, inputFD)
				l.engine.SetFileName(control.Files[fileIdx])
			}
		}

		now := time.Now()

		if eofIn && eofOut && l.writtenButNotConsumed == 0 {
			finalUpdate = true
			if l.disp.OutputProduced() || control.DelayStart < time.Millisecond {
				nextUpdate = now
			}
		}

		// Everything is written but the consumer has not caught up;
		// pause briefly rather than spinning.
		if eofIn && eofOut && l.writtenButNotConsumed > 0 {
			time.Sleep(drainPause)
		}

		if waiting {
			if (control.LineMode && linesWritten < 1) ||
				(!control.LineMode && written < 1) {
				continue
			}
			waiting = false

			// Data has started to flow: clocks restart now. Stop and
			// resume edges are held off so a resume cannot interleave
			// with the reset.
			l.signals.GuardClockRestart(func() {
				l.elapsed.RestartAt(time.Now())
			})
			nextUpdate = time.Now().Add(control.Interval)
		}

		l.elapsedSeconds = l.elapsed.Seconds(now)

		if control.NoDisplay && !control.ShowStats {
			continue
		}

		if now.Before(nextUpdate) {
			continue
		}
		nextUpdate = nextUpdate.Add(control.Interval)
		if nextUpdate.Before(now) {
			// Collapse missed deadlines rather than trying to catch up.
			nextUpdate = now
		}

		if l.signals.ConsumeResize() {
			l.disp.Resize()
		}
		if l.signals.ConsumeReparse() {
			l.disp.Reparse()
		}
		l.signals.CheckBackground()

		l.refresh(finalUpdate)
	}

	logs.Debug("loop ended: eof_in=%v eof_out=%v", eofIn, eofOut)

	l.disp.Close()

	if l.signals.Exiting() {
		exitStatus |= conf.ExitSignal
	}

	l.showStats()

	return exitStatus | l.engine.ExitStatus()
}

// updateConsumedAccounting subtracts unread pipe-buffered output from the
// written totals, so the display reflects what the consumer has actually
// read rather than what the kernel has merely accepted.
func (l *mainLoop) updateConsumedAccounting() {
	if l.outputIsPipe {
		if l.signals.PipeClosed() {
			l.writtenButNotConsumed = 0
		} else if unread, ok := transfer.PipeUnread(l.outFD); ok {
			l.writtenButNotConsumed = unread
		} else {
			l.writtenButNotConsumed = 0
		}
	}

	l.transferred = l.totalWritten
	if l.outputIsPipe && !l.control.LineMode {
		l.transferred -= l.writtenButNotConsumed
	} else if l.outputIsPipe && l.control.LineMode && l.writtenButNotConsumed > 0 {
		l.transferred -= l.engine.LinesNotConsumed(l.writtenButNotConsumed)
	}
}

// refresh recalculates the rates and redraws the status line.
func (l *mainLoop) refresh(final bool) {
	l.calc.Update(l.elapsedSeconds, l.transferred, l.control.Size,
		l.control.Bits, 0, final)

	if l.control.NoDisplay {
		return
	}

	readPos, writePos, bufSize := l.engine.BufferState()
	st := &display.State{
		ElapsedSeconds: l.elapsedSeconds,
		Transferred:    l.transferred,
		ReadPos:        readPos,
		WritePos:       writePos,
		BufferSize:     bufSize,
		SpliceUsed:     l.engine.SpliceInUse(),
		LastWritten:    l.engine.LastWritten(),
		PreviousLine:   l.engine.PreviousLine(),
	}

	line := l.disp.Render(st, l.calc, final)
	l.disp.Emit(line)
}

// showStats writes the end-of-run rate summary when requested.
func (l *mainLoop) showStats() {
	if !l.control.ShowStats {
		return
	}
	if l.calc.Measurements < 1 {
		l.disp.WriteStats("rate not measured\n")
		return
	}
	unit := "B/s"
	if l.control.Bits {
		unit = "b/s"
	}
	l.disp.WriteStats(fmt.Sprintf("rate min/avg/max/mdev = %.3f/%.3f/%.3f/%.3f %s\n",
		l.calc.RateMin, l.calc.RateMean(), l.calc.RateMax,
		l.calc.RateDeviation(), unit))
}
