package router

import (
	"errors"
	"fmt"
)

// #region decision

// Decision is the terminal outcome of one verification. The set is closed:
// Pending plus the four values returned by Terminal.
type Decision uint8

const (
	Pending Decision = iota
	Approved
	Revised
	Rejected
	Fallback
)

var decisionNames = [...]string{"pending", "approved", "revised", "rejected", "fallback"}

// Terminal lists every decision a finished verification can carry.
func Terminal() []Decision {
	return []Decision{Approved, Revised, Rejected, Fallback}
}

func (d Decision) String() string {
	if int(d) >= len(decisionNames) {
		return fmt.Sprintf("decision(%d)", uint8(d))
	}
	return decisionNames[d]
}

// IsTerminal reports whether d is one of the four final outcomes.
func (d Decision) IsTerminal() bool {
	return d >= Approved && d <= Fallback
}

// MarshalText encodes the decision by name.
func (d Decision) MarshalText() ([]byte, error) {
	if int(d) >= len(decisionNames) {
		return nil, fmt.Errorf("marshal decision: unknown value %d", uint8(d))
	}
	return []byte(decisionNames[d]), nil
}

// UnmarshalText decodes a decision name; unknown names are an error.
func (d *Decision) UnmarshalText(b []byte) error {
	parsed, err := ParseDecision(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDecision maps a name back to its Decision.
func ParseDecision(s string) (Decision, error) {
	for i, name := range decisionNames {
		if name == s {
			return Decision(i), nil
		}
	}
	return Pending, fmt.Errorf("unknown decision %q", s)
}

// #endregion decision

// #region thresholds

// Thresholds are the confidence cutoffs the router applies.
type Thresholds struct {
	Accept       float64 // final confidence needed for revised
	HardReject   float64 // below this the fallback text is returned
	StrictAccept float64 // Accept used in strict mode
}

// DefaultThresholds returns the production cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Accept:       0.6,
		HardReject:   0.3,
		StrictAccept: 0.8,
	}
}

// #endregion thresholds

// #region machine

// ErrAlreadyDecided is returned when a second terminal decision is assigned.
var ErrAlreadyDecided = errors.New("decision already assigned")

// Machine holds one verification's decision. It starts Pending and accepts
// exactly one terminal assignment.
type Machine struct {
	decision Decision
}

// Decide moves the machine from Pending to d.
func (m *Machine) Decide(d Decision) error {
	if !d.IsTerminal() {
		return fmt.Errorf("decide %s: not a terminal decision", d)
	}
	if m.decision != Pending {
		return fmt.Errorf("decide %s: %w (%s)", d, ErrAlreadyDecided, m.decision)
	}
	m.decision = d
	return nil
}

// Decision returns the current state.
func (m *Machine) Decision() Decision {
	return m.decision
}

// #endregion machine
