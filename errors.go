package cyclelife

import "fmt"

// MalformedCycleError reports a cycle whose populated arrays disagree in length.
type MalformedCycleError struct {
	Cycle int
	Field string
	Got   int
	Want  int
}

func (e *MalformedCycleError) Error() string {
	return fmt.Sprintf("cycle %d: field %s has %d samples, expected %d", e.Cycle, e.Field, e.Got, e.Want)
}

// InsufficientDataError reports too few points for a fit or statistic.
type InsufficientDataError struct {
	Op     string
	Have   int
	Need   int
	Reason string
}

func (e *InsufficientDataError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: insufficient data: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: insufficient data: have %d points, need %d", e.Op, e.Have, e.Need)
}

// UndefinedRangeError reports a differential computation without a usable overlap
// (voltage range, current range, threshold search).
type UndefinedRangeError struct {
	Op     string
	Detail string
}

func (e *UndefinedRangeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: undefined range", e.Op)
	}
	return fmt.Sprintf("%s: undefined range: %s", e.Op, e.Detail)
}

// InsufficientCycleCountError is the only battery-fatal condition: the battery is
// skipped and reported.
type InsufficientCycleCountError struct {
	BatteryID string
	Have      int
	Need      int
}

func (e *InsufficientCycleCountError) Error() string {
	return fmt.Sprintf("battery %s: insufficient cycles: have %d, need %d", e.BatteryID, e.Have, e.Need)
}

func insufficient(op string, have, need int) error {
	return &InsufficientDataError{Op: op, Have: have, Need: need}
}

func undefinedRange(op, format string, args ...any) error {
	return &UndefinedRangeError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
