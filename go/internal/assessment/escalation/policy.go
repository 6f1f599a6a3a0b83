// Package escalation aggregates violations into bounded warnings and decides
// when a session must be terminated.
package escalation

import (
	"fmt"
	"time"

	"github.com/mcdev12/mockdrive/go/internal/models"
)

const (
	DefaultMaxWarnings = 3
	DefaultGraceDelay  = 2 * time.Second
)

// Decision is the outcome of recording one violation.
type Decision struct {
	// Warning is set for every counted violation, including the one that terminates.
	Warning   bool
	Terminate bool
	Count     int
	Max       int
	Message   string
}

// Policy is the per-session warning counter. Owned by the session event loop.
type Policy struct {
	maxWarnings int
	state       models.WarningState
}

func NewPolicy(maxWarnings int) *Policy {
	if maxWarnings <= 0 {
		maxWarnings = DefaultMaxWarnings
	}
	return &Policy{maxWarnings: maxWarnings}
}

// Record counts v. Once terminated further violations are no-ops.
func (p *Policy) Record(v models.Violation) Decision {
	if p.state.Terminated {
		return Decision{Count: p.state.Count, Max: p.maxWarnings}
	}

	if p.state.Count < p.maxWarnings {
		p.state.Count++
	}
	p.state.LastType = v.Type

	d := Decision{
		Warning: true,
		Count:   p.state.Count,
		Max:     p.maxWarnings,
	}
	if p.state.Count >= p.maxWarnings {
		p.state.Terminated = true
		d.Terminate = true
		d.Message = fmt.Sprintf("%s. Maximum warnings reached, your test is being submitted.", v.Type.Describe())
		return d
	}
	d.Message = fmt.Sprintf("%s. Warning %d of %d.", v.Type.Describe(), p.state.Count, p.maxWarnings)
	return d
}

// Restore rebuilds the counter from violations already recorded in the
// current round. Reaching the limit leaves the policy terminated.
func (p *Policy) Restore(count int, lastType models.ViolationType) {
	count = max(0, min(count, p.maxWarnings))
	p.state = models.WarningState{
		Count:      count,
		LastType:   lastType,
		Terminated: count >= p.maxWarnings,
	}
}

// Reset zeroes the counter. Only call at a new round or session boundary.
func (p *Policy) Reset() {
	p.state = models.WarningState{}
}

func (p *Policy) State() models.WarningState { return p.state }

func (p *Policy) MaxWarnings() int { return p.maxWarnings }
