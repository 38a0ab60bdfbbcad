package conf

import (
	"errors"
	"fmt"
)

// ErrConfig marks configuration problems: malformed numbers or option
// combinations that cannot be honoured together.
var ErrConfig = errors.New("invalid configuration")

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// ParseSize converts a string such as "1.5M" into a byte count. The suffix
// K/M/G/T multiplies by powers of 1024, or powers of 1000 when
// decimalUnits is set. Non-numeric leading characters are skipped; the
// fractional part is honoured to four digits.
func ParseSize(str string, decimalUnits bool) int64 {
	var integral, fractional int64
	fractionalDivisor := int64(1)
	pos := 0

	for pos < len(str) && !isDigit(str[pos]) {
		pos++
	}

	for ; pos < len(str) && isDigit(str[pos]); pos++ {
		integral = integral*10 + int64(str[pos]-'0')
	}

	if pos < len(str) && (str[pos] == '.' || str[pos] == ',') {
		pos++
		for ; pos < len(str) && isDigit(str[pos]); pos++ {
			// Stop counting below 0.0001.
			if fractionalDivisor < 10000 {
				fractional = fractional*10 + int64(str[pos]-'0')
				fractionalDivisor *= 10
			}
		}
	}

	for pos < len(str) && (str[pos] == ' ' || str[pos] == '\t') {
		pos++
	}

	var binaryShift uint
	var decimalMultiplier int64
	if pos < len(str) {
		switch str[pos] {
		case 'k', 'K':
			binaryShift, decimalMultiplier = 10, 1000
		case 'm', 'M':
			binaryShift, decimalMultiplier = 20, 1000000
		case 'g', 'G':
			binaryShift, decimalMultiplier = 30, 1000000000
		case 't', 'T':
			binaryShift, decimalMultiplier = 40, 1000000000000
		}
	}

	if decimalUnits {
		binaryShift = 0
	} else {
		decimalMultiplier = 0
	}

	if binaryShift > 0 {
		integral <<= binaryShift
		fractional <<= binaryShift
	}
	if decimalMultiplier > 0 {
		integral *= decimalMultiplier
		fractional *= decimalMultiplier
	}

	return integral + fractional/fractionalDivisor
}

// ParseFraction converts a string expressing a positive decimal time
// interval into seconds, honouring up to six fractional digits.
func ParseFraction(str string) float64 {
	pos := 0
	for pos < len(str) && !isDigit(str[pos]) {
		pos++
	}

	result := 0.0
	for ; pos < len(str) && isDigit(str[pos]); pos++ {
		result = result*10 + float64(str[pos]-'0')
	}

	if pos >= len(str) || (str[pos] != '.' && str[pos] != ',') {
		return result
	}
	pos++

	step := 1.0
	for ; pos < len(str) && isDigit(str[pos]) && step < 1000000; pos++ {
		step *= 10
		result += float64(str[pos]-'0') / step
	}
	return result
}

// NumType constrains what forms CheckNum accepts.
type NumType int

const (
	// NumInteger allows only bare digits.
	NumInteger NumType = iota
	// NumAny allows a fractional part but no suffix.
	NumAny
	// NumAnyWithSuffix allows a fractional part and a units suffix.
	NumAnyWithSuffix
)

// CheckNum reports whether str is a well-formed number of the given type.
func CheckNum(str string, numType NumType) error {
	pos := 0
	for pos < len(str) && (str[pos] == ' ' || str[pos] == '\t') {
		pos++
	}
	if pos >= len(str) || !isDigit(str[pos]) {
		return fmt.Errorf("%w: %q: not a number", ErrConfig, str)
	}
	for pos < len(str) && isDigit(str[pos]) {
		pos++
	}
	if pos < len(str) && (str[pos] == '.' || str[pos] == ',') {
		if numType == NumInteger {
			return fmt.Errorf("%w: %q: integer required", ErrConfig, str)
		}
		pos++
		for pos < len(str) && isDigit(str[pos]) {
			pos++
		}
	}
	if pos >= len(str) {
		return nil
	}
	if numType != NumAnyWithSuffix {
		return fmt.Errorf("%w: %q: trailing characters", ErrConfig, str)
	}
	for pos < len(str) && (str[pos] == ' ' || str[pos] == '\t') {
		pos++
	}
	if pos >= len(str) {
		return nil
	}
	switch str[pos] {
	case 'k', 'K', 'm', 'M', 'g', 'G', 't', 'T':
		pos++
	default:
		return fmt.Errorf("%w: %q: unknown units suffix", ErrConfig, str)
	}
	if pos != len(str) {
		return fmt.Errorf("%w: %q: trailing characters", ErrConfig, str)
	}
	return nil
}
