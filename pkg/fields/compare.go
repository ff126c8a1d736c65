package fields

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Ramsey-B/clover/pkg/canonical"
)

// Comparator reports whether two extracted values agree. An error means one
// of the values is malformed for this field.
type Comparator func(a, b any) (bool, error)

// ScoringError reports a value that could not be compared. The scorer treats
// the value pair as absent.
type ScoringError struct {
	Field string
	Value any
	Err   error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("field %s: cannot compare value %v: %v", e.Field, e.Value, e.Err)
}

func (e *ScoringError) Unwrap() error {
	return e.Err
}

const (
	// AmountTolerance is the exclusive upper bound on the absolute difference
	// between two matching amounts.
	AmountTolerance = 0.10

	// TimestampTolerance is the inclusive bound on the distance between two
	// matching timestamps.
	TimestampTolerance = 30 * time.Minute

	// amounts are compared on a micro-unit grid so 0.10 gaps do not drift
	// below the tolerance through float error
	amountScale = 1e6
)

// Exact is case-sensitive string equality. Blank values never match.
func Exact(a, b any) (bool, error) {
	x, y := canonical.AsString(a), canonical.AsString(b)
	if x == "" || y == "" {
		return false, nil
	}
	return x == y, nil
}

// AmountWithin matches amounts whose absolute difference is strictly below
// AmountTolerance.
func AmountWithin(a, b any) (bool, error) {
	x, err := canonical.ParseAmount(a)
	if err != nil {
		return false, err
	}
	y, err := canonical.ParseAmount(b)
	if err != nil {
		return false, err
	}
	diff := math.Abs(math.Round(x*amountScale) - math.Round(y*amountScale))
	return diff < math.Round(AmountTolerance*amountScale), nil
}

// EmailEqual is trimmed, case-insensitive equality.
func EmailEqual(a, b any) (bool, error) {
	x := NormalizeEmail(canonical.AsString(a))
	y := NormalizeEmail(canonical.AsString(b))
	if x == "" || y == "" {
		return false, nil
	}
	return x == y, nil
}

// NameContains matches when either normalized name contains the other.
func NameContains(a, b any) (bool, error) {
	x := NormalizeName(canonical.FullName(a))
	y := NormalizeName(canonical.FullName(b))
	if x == "" || y == "" {
		return false, nil
	}
	return strings.Contains(x, y) || strings.Contains(y, x), nil
}

// TimestampWithin matches timestamps at most TimestampTolerance apart.
func TimestampWithin(a, b any) (bool, error) {
	x, err := canonical.ParseTime(a)
	if err != nil {
		return false, err
	}
	y, err := canonical.ParseTime(b)
	if err != nil {
		return false, err
	}
	diff := x.Sub(y)
	if diff < 0 {
		diff = -diff
	}
	return diff <= TimestampTolerance, nil
}
