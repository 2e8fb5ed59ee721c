// Package units parses and formats the size, duration and boolean literals used throughout
// simulation configuration and playbooks.
package units

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dsnet/golib/unitconv"
)

const invalidSizeErrorText = "invalid size format, must be a whole number optionally followed by a decimal unit (k, kB, M, MB, G, GB, T, TB) or a binary unit (Ki, KiB, Mi, MiB, Gi, GiB, Ti, TiB)"

var sizeMultipliers = map[string]float64{
	"":    1,
	"B":   1,
	"k":   1e3,
	"kB":  1e3,
	"K":   1e3,
	"KB":  1e3,
	"M":   1e6,
	"MB":  1e6,
	"G":   1e9,
	"GB":  1e9,
	"T":   1e12,
	"TB":  1e12,
	"Ki":  1 << 10,
	"KiB": 1 << 10,
	"Mi":  1 << 20,
	"MiB": 1 << 20,
	"Gi":  1 << 30,
	"GiB": 1 << 30,
	"Ti":  1 << 40,
	"TiB": 1 << 40,
}

// durationUnits maps the accepted duration units to the ones time.ParseDuration reads.
var durationUnits = map[string]string{
	"":    "s",
	"s":   "s",
	"min": "m",
	"h":   "h",
}

var (
	sizeRegex     = regexp.MustCompile(`^([\d\.]+)\s*([a-zA-Z]*)$`)
	durationRegex = regexp.MustCompile(`^([\d\.]+)\s*([a-z]*)$`)
)

// ParseSize parses `<number>[unit]` into bytes. Decimal units multiply by 1000^n and binary
// units by 1024^n, so `1MB` is 1000000 and `1MiB` is 1048576. Plain byte counts must be whole
// numbers, fractions are only accepted together with a unit (`1.5KiB`).
func ParseSize(input string) (int64, error) {
	matches := sizeRegex.FindStringSubmatch(strings.TrimSpace(input))
	if matches == nil {
		return 0, errors.New(invalidSizeErrorText)
	}
	unit := matches[2]
	multiplier, ok := sizeMultipliers[unit]
	if !ok {
		return 0, fmt.Errorf("unknown size unit %q (provided input: %s)", unit, input)
	}

	if !strings.Contains(matches[1], ".") {
		num, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("unable to parse a valid number from the provided input (%s): %w", input, err)
		}
		if num != 0 && int64(multiplier) > math.MaxInt64/num {
			return 0, fmt.Errorf("value parsed from the provided input would exceed the maximum allowed (%d)", int64(math.MaxInt64))
		}
		return num * int64(multiplier), nil
	} else if unit == "" || unit == "B" {
		return 0, fmt.Errorf("bytes must be specified as a whole number (provided input: %s)", input)
	}

	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse a valid number from the provided input (%s): %w", input, err)
	}
	b := num * multiplier
	if b >= math.MaxInt64 {
		return 0, fmt.Errorf("value parsed from the provided input (%f) is larger than the maximum allowed (%d)", b, int64(math.MaxInt64))
	}
	return int64(b), nil
}

// ParseDuration parses `<number>[s|min|h]` where a bare number means seconds. Whitespace between
// the number and the unit is allowed so `1 min` and `1min` are the same.
func ParseDuration(input string) (time.Duration, error) {
	matches := durationRegex.FindStringSubmatch(strings.TrimSpace(input))
	if matches == nil {
		return 0, fmt.Errorf("invalid duration format %q, must be a number optionally followed by s, min or h", input)
	}
	unit, ok := durationUnits[matches[2]]
	if !ok {
		return 0, fmt.Errorf("unknown duration unit %q (provided input: %s)", matches[2], input)
	}
	// time.ParseDuration keeps the fraction in integer nanoseconds, a float would drop some.
	d, err := time.ParseDuration(matches[1] + unit)
	if err != nil {
		return 0, fmt.Errorf("unable to parse a valid duration from the provided input (%s): %w", input, err)
	}
	return d, nil
}

// ParseBool accepts true/yes/y and false/no/n in any case.
func ParseBool(input string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "true", "yes", "y":
		return true, nil
	case "false", "no", "n":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q, must be one of true, yes, y, false, no, n", input)
}

// FormatSize renders bytes with an IEC prefix, for example "1.5KiB".
func FormatSize(b int64) string {
	return strings.TrimSpace(unitconv.FormatPrefix(float64(b), unitconv.IEC, 1)) + "B"
}

// FormatSeconds renders a duration as a whole or fractional number of seconds the way
// ParseDuration reads it back. All nine fractional digits are kept when needed, so the result
// parses back to exactly d.
func FormatSeconds(d time.Duration) string {
	sign, n := "", uint64(d)
	if d < 0 {
		sign, n = "-", uint64(-d)
	}
	s := strconv.FormatUint(n/uint64(time.Second), 10)
	if frac := n % uint64(time.Second); frac != 0 {
		s += "." + strings.TrimRight(fmt.Sprintf("%09d", frac), "0")
	}
	return sign + s
}

// SizeHook is a mapstructure decode hook that lets int64 settings be given as size literals such
// as "4KiB". Other conversions are left to the decoder.
func SizeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Int64 {
		return data, nil
	}
	return ParseSize(reflect.ValueOf(data).String())
}
