// Package path provides a linear chain world. The agent starts
// somewhere on the chain and the last index is the terminal state.
// Moves that would leave the chain, or that do not change the state,
// count as no-ops and are penalized.
//
// Package path は一本道の世界を提供します。エージェントは道の上の
// どこかから開始し、最後の添字が終端状態です。道から外れる移動や、
// 状態が変わらない移動は無効移動と見なされ、ペナルティを受けます。
package path

import (
	"github.com/sw965/raven/mdp"
	"github.com/sw965/raven/measure"
)

type State int

type Action int

const (
	Next Action = iota
	Prev
)

func (a Action) String() string {
	switch a {
	case Next:
		return "Next"
	case Prev:
		return "Prev"
	default:
		return "Unknown"
	}
}

const (
	NextReward = 0.1
	PrevReward = -0.5

	// NoOpReward is the penalty for a move that does not change the state.
	NoOpReward = -1.0

	// EndReward is the bonus added when a move lands on the terminal state.
	EndReward = 10.0
)

// New builds a chain of the given length. Both actions are legal
// everywhere, including the terminal state, where they no-op.
//
// New は指定された長さの一本道を構築します。どちらの行動も終端状態を
// 含む全ての状態で合法であり、終端では無効移動になります。
func New(length int) mdp.Logic[State, Action] {
	states := make([]State, length)
	for i := range states {
		states[i] = State(i)
	}
	actions := []Action{Next, Prev}

	transitionFunc := func(state State, action Action) (measure.Measure[State], float64, error) {
		current := int(state)
		next := current
		switch action {
		case Next:
			next = current + 1
		case Prev:
			if current > 0 {
				next = current - 1
			}
		}

		if next >= length || next == current {
			return measure.Deterministic(state), NoOpReward, nil
		}

		var reward float64
		switch action {
		case Next:
			reward = NextReward
		case Prev:
			reward = PrevReward
		}

		if next == length-1 {
			reward += EndReward
		}
		return measure.Deterministic(State(next)), reward, nil
	}

	return mdp.Logic[State, Action]{
		States: mdp.NewSampler(states),
		ActionsFunc: func(state State) []Action {
			return actions
		},
		IsFinalFunc: func(state State) bool {
			return int(state) == length-1
		},
		TransitionFunc: transitionFunc,
	}
}
