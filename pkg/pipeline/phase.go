package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"scicontent/pkg/logx"
)

// ErrIllegalTransition indicates a phase change the transition table does not allow.
var ErrIllegalTransition = errors.New("illegal phase transition")

// Phase is the lifecycle position of a run.
type Phase string

// Fixed phases. Running phases are built with RunningStage.
const (
	PhaseNotStarted Phase = "NOT_STARTED"
	PhaseCompleted  Phase = "COMPLETED"
	PhaseFailed     Phase = "FAILED"
)

// RunningStage returns the phase of the 1-based stage index.
func RunningStage(index int) Phase {
	return Phase(fmt.Sprintf("RUNNING_STAGE_%d", index))
}

func (p Phase) String() string { return string(p) }

// IsTerminal reports whether no further transition is possible.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// TransitionTable maps each phase to the phases it may move to.
type TransitionTable map[Phase][]Phase

// NewTransitionTable builds the table for a pipeline of n stages:
// NOT_STARTED → RUNNING_STAGE_1 → ... → RUNNING_STAGE_n → COMPLETED, with FAILED
// reachable from every non-terminal phase.
func NewTransitionTable(n int) TransitionTable {
	table := TransitionTable{}
	if n <= 0 {
		table[PhaseNotStarted] = []Phase{PhaseFailed}
		return table
	}
	table[PhaseNotStarted] = []Phase{RunningStage(1), PhaseFailed}
	for i := 1; i < n; i++ {
		table[RunningStage(i)] = []Phase{RunningStage(i + 1), PhaseFailed}
	}
	table[RunningStage(n)] = []Phase{PhaseCompleted, PhaseFailed}
	return table
}

// Allows reports whether from → to is legal.
func (t TransitionTable) Allows(from, to Phase) bool {
	return slices.Contains(t[from], to)
}

// Transition records one phase change.
type Transition struct {
	From      Phase
	To        Phase
	Timestamp time.Time
}

// PhaseMachine tracks the phase of one run.
type PhaseMachine struct {
	mu          sync.Mutex
	current     Phase
	table       TransitionTable
	transitions []Transition
	logger      *logx.Logger
}

// NewPhaseMachine starts in NOT_STARTED.
func NewPhaseMachine(table TransitionTable, logger *logx.Logger) *PhaseMachine {
	if logger == nil {
		logger = logx.NewLogger("pipeline")
	}
	return &PhaseMachine{
		current: PhaseNotStarted,
		table:   table,
		logger:  logger,
	}
}

// Current returns the current phase.
func (m *PhaseMachine) Current() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// TransitionTo moves to the next phase, rejecting moves the table does not allow.
func (m *PhaseMachine) TransitionTo(to Phase) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.current
	if !m.table.Allows(from, to) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrIllegalTransition, from, to)
	}

	m.transitions = append(m.transitions, Transition{From: from, To: to, Timestamp: time.Now().UTC()})
	m.current = to
	m.logger.Debug("🔄 Pipeline transition: %s → %s", from, to)
	return nil
}

// Transitions returns the transition history.
func (m *PhaseMachine) Transitions() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transition(nil), m.transitions...)
}
