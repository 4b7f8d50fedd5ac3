package repositories

import (
	"errors"
	"math"
	"time"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")
)

// Bounds used when a log query leaves a side of the date range open. They
// match the smallest and largest instants a JavaScript Date can hold, which
// is what existing documents were written against.
var (
	MinLogDate = time.UnixMilli(-8_640_000_000_000_000).UTC()
	MaxLogDate = time.UnixMilli(8_640_000_000_000_000).UTC()
)

// MaxLogLimit stands in for "no limit" in log queries.
const MaxLogLimit = math.MaxInt32

func effectiveLimit(limit int) int {
	if limit <= 0 || limit > MaxLogLimit {
		return MaxLogLimit
	}
	return limit
}
