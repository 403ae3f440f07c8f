package orders

import "strings"

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusPaid, StatusConfirmed, StatusCancelled}

// transitions is the complete table of permitted moves; anything absent is
// rejected, terminal states have no entry.
var transitions = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusPaid:      {},
		StatusConfirmed: {},
		StatusCancelled: {},
	},
	StatusPaid: {
		StatusConfirmed: {},
		StatusCancelled: {},
	},
}

// ParseStatus accepts the lowercase wire names, case-insensitively.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range AllStatuses {
		if s == known {
			return s, nil
		}
	}
	return "", ErrUnknownStatus
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

// CanTransition reports whether from -> to is in the table.
func CanTransition(from, to Status) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}
