package diagnostic

import (
	"context"
	"errors"
	"sync"

	"github.com/openhouse/portalcache/outbox"
)

// Outcomes of a finished flow
const (
	Resolved  = "resolved"
	Escalated = "escalated"
)

var (
	ErrFinished      = errors.New("diagnostic flow already finished")
	ErrWrongStepType = errors.New("answer does not fit the current step")
	ErrNoNextStep    = errors.New("step leads nowhere")
	ErrNoSuchOption  = errors.New("no such option")
)

// Report describes a finished walk.
type Report struct {
	FlowID  string   `json:"diagnostic_flow_id"`
	UnitUID string   `json:"unit_uid,omitempty"`
	Outcome string   `json:"outcome"`
	Steps   []string `json:"steps_completed"`
}

/*
Walker follows one purchaser through a flow.

It starts at the flow's first step and remembers every step visited, so
Back can retrace them. When an answer resolves or escalates, the walk is
reported once through the outbox and the walker accepts no more answers.
A Walker is safe for concurrent use.
*/
type Walker struct {
	flow    Flow
	unitUID string
	out     outbox.Outbox[Report]

	mu      sync.Mutex
	path    []string
	outcome string
}

// NewWalker starts f. out may be nil when nobody needs the report.
func NewWalker(f Flow, unitUID string, out outbox.Outbox[Report]) *Walker {
	w := &Walker{flow: f, unitUID: unitUID, out: out}
	if len(f.Steps) > 0 {
		w.path = []string{f.Steps[0].ID}
	}
	return w
}

// Flow returns the flow being walked.
func (w *Walker) Flow() Flow {
	return w.flow
}

// Current returns the step being shown. It is the zero Step once the flow
// has finished.
func (w *Walker) Current() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current()
}

func (w *Walker) current() Step {
	if w.outcome != "" || len(w.path) == 0 {
		return Step{}
	}
	s, _ := w.flow.Step(w.path[len(w.path)-1])
	return s
}

// Position returns the 1-based index of the current step in the flow and
// the number of steps that are not escalation steps.
func (w *Walker) Position() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cur := w.current()
	n, total := 0, 0
	for i, s := range w.flow.Steps {
		if s.ID == cur.ID {
			n = i + 1
		}
		if s.Type != Escalate {
			total++
		}
	}
	return n, total
}

// Path returns the IDs of the steps visited so far.
func (w *Walker) Path() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.path...)
}

// Outcome is Resolved or Escalated once the flow has finished, and empty
// before.
func (w *Walker) Outcome() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.outcome
}

// Done reports whether the flow has finished.
func (w *Walker) Done() bool {
	return w.Outcome() != ""
}

// Yes answers the current yes/no step.
func (w *Walker) Yes(ctx context.Context) error {
	return w.answer(ctx, YesNo, func(s Step) (string, string, error) {
		return s.YesAction, s.YesNext, nil
	})
}

// No answers the current yes/no step.
func (w *Walker) No(ctx context.Context) error {
	return w.answer(ctx, YesNo, func(s Step) (string, string, error) {
		return s.NoAction, s.NoNext, nil
	})
}

// Choose picks option i of a multiple choice step.
func (w *Walker) Choose(ctx context.Context, i int) error {
	return w.answer(ctx, MultipleChoice, func(s Step) (string, string, error) {
		if i < 0 || i >= len(s.Options) {
			return "", "", ErrNoSuchOption
		}
		return s.Options[i].Action, s.Options[i].Next, nil
	})
}

// Continue moves on from an info or redirect step.
func (w *Walker) Continue(ctx context.Context) error {
	return w.answer(ctx, Info, func(s Step) (string, string, error) {
		return "", s.Next, nil
	})
}

// Escalate ends the flow from an escalation step.
func (w *Walker) Escalate(ctx context.Context) error {
	return w.answer(ctx, Escalate, func(Step) (string, string, error) {
		return ActionEscalated, "", nil
	})
}

func (w *Walker) answer(ctx context.Context, want string, pick func(Step) (string, string, error)) error {
	w.mu.Lock()

	if w.outcome != "" {
		w.mu.Unlock()
		return ErrFinished
	}

	s := w.current()
	if s.Type != want && !(want == Info && s.Type == Redirect) {
		w.mu.Unlock()
		return ErrWrongStepType
	}

	action, next, err := pick(s)
	if err != nil {
		w.mu.Unlock()
		return err
	}

	switch {
	case action == ActionResolved:
		w.outcome = Resolved
	case action == ActionEscalate || action == ActionEscalated:
		w.outcome = Escalated
	case next != "":
		w.path = append(w.path, next)
		w.mu.Unlock()
		return nil
	default:
		w.mu.Unlock()
		return ErrNoNextStep
	}

	r := Report{
		FlowID:  w.flow.ID,
		UnitUID: w.unitUID,
		Outcome: w.outcome,
		Steps:   append([]string(nil), w.path...),
	}
	w.mu.Unlock()

	if w.out != nil {
		w.out.Send(ctx, r)
	}
	return nil
}

// Back returns to the previous step. It reports false when there is no
// step to go back to, which is where the caller leaves the flow. A
// finished flow cannot go back.
func (w *Walker) Back() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.outcome != "" || len(w.path) < 2 {
		return false
	}
	w.path = w.path[:len(w.path)-1]
	return true
}
