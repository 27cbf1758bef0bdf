package domain

import "fmt"

type Status string

const (
	Pending    Status = "Pending"
	Processing Status = "Processing"
	Succeeded  Status = "Succeeded"
	Failed     Status = "Failed"
)

func (s Status) Valid() bool {
	switch s {
	case Pending, Processing, Succeeded, Failed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is accepted from s.
func (s Status) Terminal() bool {
	return s == Succeeded || s == Failed
}

func CanTransition(from, to Status) bool {
	switch from {
	case Pending:
		return to == Processing || to == Failed
	case Processing:
		return to == Succeeded || to == Failed
	case Succeeded:
		return false
	case Failed:
		return false
	default:
		return false
	}
}

func ValidateTransition(from, to Status) error {
	if from == to && !from.Terminal() {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
