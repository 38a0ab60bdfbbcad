// Package calc derives rates, averages, percentages and completion
// estimates from the transfer counters, once per display refresh.
package calc

import "math"

// sample pairs an elapsed time with the amount transferred at that time.
type sample struct {
	elapsedSec  float64
	transferred int64
}

// Calc holds the calculated transfer state. Update is called from the main
// loop once per display interval, and once more for the final update.
type Calc struct {
	prevTransferred int64
	prevElapsedSec  float64
	prevRate        float64
	prevTrans       int64 // carry for intervals below the spike threshold

	history         []sample
	historyFirst    int
	historyLast     int
	historyLen      int
	historyInterval int
	currentAvgRate  float64

	// Rate measurement statistics, in bits per second when bits mode is
	// on.
	RateMin        float64
	RateMax        float64
	rateSum        float64
	rateSquaredSum float64
	Measurements   int

	// Outputs of the most recent Update.
	Rate       float64
	AvgRate    float64
	Percentage float64
}

// Intervals below this many seconds reuse the previous rate and carry the
// byte delta forward, to avoid rate spikes and division by zero.
const minMeasureInterval = 0.01

// ETABound caps estimates at 100,000 hours.
const ETABound = 360000000.0

// New returns a calculator whose average-rate window covers windowSeconds.
// Windows below twenty seconds keep one sample per second; larger windows
// keep one sample per five seconds.
func New(windowSeconds int) *Calc {
	if windowSeconds < 1 {
		windowSeconds = 1
	}
	interval := 1
	length := windowSeconds + 1
	if windowSeconds >= 20 {
		interval = 5
		length = windowSeconds/5 + 1
	}
	return &Calc{
		history:         make([]sample, length),
		historyInterval: interval,
	}
}

// updateAverageRateHistory appends a history sample if enough time has
// passed since the last one, evicting the oldest when the ring is full,
// then recomputes the current average rate. With a single sample the
// average is the provided instantaneous rate.
func (c *Calc) updateAverageRateHistory(elapsedSec float64, transferred int64, rate float64) {
	if len(c.history) == 0 {
		return
	}

	lastElapsed := c.history[c.historyLast].elapsedSec
	if lastElapsed > 0 && elapsedSec < lastElapsed+float64(c.historyInterval) {
		return
	}

	if lastElapsed > 0 {
		c.historyLast = (c.historyLast + 1) % len(c.history)
		if c.historyLast == c.historyFirst {
			c.historyFirst = (c.historyFirst + 1) % len(c.history)
		}
	}
	if c.historyLen < len(c.history) {
		c.historyLen++
	}

	c.history[c.historyLast] = sample{elapsedSec: elapsedSec, transferred: transferred}

	if c.historyFirst == c.historyLast {
		c.currentAvgRate = rate
		return
	}

	bytes := c.history[c.historyLast].transferred - c.history[c.historyFirst].transferred
	sec := c.history[c.historyLast].elapsedSec - c.history[c.historyFirst].elapsedSec
	if sec < 0.000001 && sec > -0.000001 {
		sec = 0.000001
	}
	c.currentAvgRate = float64(bytes) / sec
}

// Update recalculates the instantaneous rate, average rate and percentage
// from the given counters. Size is zero when the total is unknown. When
// final is true, both rates are replaced by the whole-transfer average,
// measured from initialOffset.
func (c *Calc) Update(elapsedSec float64, transferred, size int64, bits bool, initialOffset int64, final bool) {
	var bytesSinceLast int64
	if transferred >= 0 {
		bytesSinceLast = transferred - c.prevTransferred
		c.prevTransferred = transferred
	}

	var rate float64
	timeSinceLast := elapsedSec - c.prevElapsedSec
	if timeSinceLast <= minMeasureInterval {
		rate = c.prevRate
		c.prevTrans += bytesSinceLast
	} else {
		rate = (float64(bytesSinceLast) + float64(c.prevTrans)) / timeSinceLast
		measured := rate
		c.prevElapsedSec = elapsedSec
		c.prevTrans = 0

		if bits {
			measured *= 8
		}
		if c.Measurements < 1 || measured < c.RateMin {
			c.RateMin = measured
		}
		if measured > c.RateMax {
			c.RateMax = measured
		}
		c.rateSum += measured
		c.rateSquaredSum += measured * measured
		c.Measurements++
	}
	c.prevRate = rate

	c.updateAverageRateHistory(elapsedSec, transferred, rate)
	avgRate := c.currentAvgRate

	if final {
		totalElapsed := elapsedSec
		if totalElapsed < 0.000001 {
			totalElapsed = 0.000001
		}
		avgRate = float64(transferred-initialOffset) / totalElapsed
		rate = avgRate
	}

	c.Rate = rate
	c.AvgRate = avgRate

	if size <= 0 {
		// With an unknown total, the percentage sweeps 0..200 and
		// wraps, so an indicator can bounce back and forth.
		if rate > 0 {
			c.Percentage += 2
		}
		if c.Percentage > 199 {
			c.Percentage = 0
		}
	} else {
		c.Percentage = Percentage(transferred, size)
	}

	if c.Percentage < 0 {
		c.Percentage = 0
	}
	if c.Percentage > 100000 {
		c.Percentage = 100000
	}
}

// CurrentAvgRate returns the windowed average rate used for estimates.
func (c *Calc) CurrentAvgRate() float64 { return c.currentAvgRate }

// Percentage returns 100*amount/total, or zero when the total is not
// positive.
func Percentage(amount, total int64) float64 {
	if total < 1 {
		return 0
	}
	return float64(amount) * 100.0 / float64(total)
}

// SecondsRemaining estimates time to completion at the given rate,
// clamped to [0, ETABound].
func SecondsRemaining(transferred, size int64, rate float64) float64 {
	if size <= 0 || rate <= 0 {
		return 0
	}
	eta := float64(size-transferred) / rate
	if eta < 0 {
		eta = 0
	}
	if eta > ETABound {
		eta = ETABound
	}
	return eta
}

// RateMean returns the mean of all rate measurements.
func (c *Calc) RateMean() float64 {
	if c.Measurements < 1 {
		return 0
	}
	return c.rateSum / float64(c.Measurements)
}

// RateDeviation returns the standard deviation of the rate measurements.
func (c *Calc) RateDeviation() float64 {
	if c.Measurements < 1 {
		return 0
	}
	mean := c.RateMean()
	variance := c.rateSquaredSum/float64(c.Measurements) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}
