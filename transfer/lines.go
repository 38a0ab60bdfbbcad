package transfer

// LinesNotConsumed walks the separator-position ring backwards from the
// most recent entry, counting how many separators lie strictly after the
// last byte the consumer has read. The result is subtracted from the line
// total so a line-mode display reflects consumer progress.
func (e *Engine) LinesNotConsumed(unread int64) int64 {
	if unread <= 0 || e.linePositions == nil {
		return 0
	}

	lastConsumed := e.lastOutputPosition - unread
	var count int64

	for fromEnd := 0; fromEnd < e.linePositionsLen; fromEnd++ {
		idx := e.linePositionsHead - fromEnd - 1
		for idx < 0 {
			idx += len(e.linePositions)
		}
		if e.linePositions[idx] <= lastConsumed {
			break
		}
		count++
	}
	return count
}
