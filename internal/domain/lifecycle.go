package domain

import (
	"encoding/json"
	"fmt"
)

// Status is the lifecycle stage of a deal. The zero value is not a valid stage.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusFunding
	StatusInTransit
	StatusArrived
	StatusInspected
	StatusReleased
	StatusSettled
	StatusCancelled
)

var statusNames = map[Status]string{
	StatusFunding:   "Funding",
	StatusInTransit: "InTransit",
	StatusArrived:   "Arrived",
	StatusInspected: "Inspected",
	StatusReleased:  "Released",
	StatusSettled:   "Settled",
	StatusCancelled: "Cancelled",
}

// forward is the adjacency table of the shipment path. Each stage has at most
// one successor; Settled and Cancelled have none.
var forward = map[Status]Status{
	StatusFunding:   StatusInTransit,
	StatusInTransit: StatusArrived,
	StatusArrived:   StatusInspected,
	StatusInspected: StatusReleased,
	StatusReleased:  StatusSettled,
}

// Statuses lists every valid stage in lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusFunding, StatusInTransit, StatusArrived, StatusInspected,
		StatusReleased, StatusSettled, StatusCancelled,
	}
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusSettled || s == StatusCancelled
}

// ParseStatus accepts the canonical stage name, case-sensitively.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return StatusUnknown, &ValidationError{Field: "status", Msg: fmt.Sprintf("unknown stage %q", name)}
}

func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("marshal status: invalid value %d", uint8(s))
	}
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// CanAdvance permits only the single next stage on the shipment path.
func CanAdvance(current, target Status) bool {
	next, ok := forward[current]
	return ok && next == target
}

// CanCancel reports whether a deal in current may be cancelled.
func CanCancel(current Status) bool {
	return current == StatusFunding
}

// CheckAdvance returns a *TransitionError when current → target is not allowed.
func CheckAdvance(current, target Status) error {
	if !CanAdvance(current, target) {
		return &TransitionError{From: current, To: target}
	}
	return nil
}

// CheckManualAdvance is CheckAdvance for operator staging requests, which may
// never set Settled; that stage belongs to the payout engine.
func CheckManualAdvance(current, target Status) error {
	if target == StatusSettled || target == StatusCancelled {
		return &TransitionError{From: current, To: target}
	}
	return CheckAdvance(current, target)
}
