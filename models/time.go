package models

import (
	"fmt"
	"math"
	"time"
)

const (
	// MinNanoTime is the minimum time representable as a nanosecond epoch.
	// The smallest two int64 values are reserved by the storage engine.
	MinNanoTime = int64(math.MinInt64) + 2

	// MaxNanoTime is the maximum time representable as a nanosecond epoch.
	MaxNanoTime = int64(math.MaxInt64) - 1
)

var (
	minNanoTime = time.Unix(0, MinNanoTime).UTC()
	maxNanoTime = time.Unix(0, MaxNanoTime).UTC()

	// ErrTimeOutOfRange is returned for timestamps outside the representable
	// nanosecond epoch range.
	ErrTimeOutOfRange = fmt.Errorf("time outside range %d - %d", MinNanoTime, MaxNanoTime)
)

// CheckTime reports whether t is within the representable range.
func CheckTime(t time.Time) error {
	if t.Before(minNanoTime) || t.After(maxNanoTime) {
		return ErrTimeOutOfRange
	}
	return nil
}

// CheckNano reports whether a nanosecond epoch is within the representable
// range.
func CheckNano(ns int64) error {
	if ns < MinNanoTime || ns > MaxNanoTime {
		return ErrTimeOutOfRange
	}
	return nil
}

// GetPrecisionMultiplier returns the nanosecond multiplier for a precision
// string as used by the HTTP API ("ns", "u", "ms", "s", "m", "h").
func GetPrecisionMultiplier(precision string) int64 {
	d := time.Nanosecond
	switch precision {
	case "u":
		d = time.Microsecond
	case "ms":
		d = time.Millisecond
	case "s":
		d = time.Second
	case "m":
		d = time.Minute
	case "h":
		d = time.Hour
	}
	return int64(d)
}
