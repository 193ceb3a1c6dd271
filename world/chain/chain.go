// Package chain provides a branched chain world: a linear chain with
// an extra Detour action that is legal only at configured branch
// states and throws the agent back to the start. Action spaces are
// therefore heterogeneous across states, which makes the world a good
// fixture for comparing composition operators.
//
// Package chain は分岐付きの一本道の世界を提供します。設定された
// 分岐状態でのみ合法な Detour 行動があり、実行するとエージェントは
// 出発点に戻されます。状態毎に行動空間が異なる為、合成演算子の比較に
// 適した題材です。
package chain

import (
	"slices"

	"github.com/sw965/raven/mdp"
	"github.com/sw965/raven/measure"
)

type State int

type Action int

const (
	Prev Action = iota
	Next
	Detour
)

func (a Action) String() string {
	switch a {
	case Prev:
		return "Prev"
	case Next:
		return "Next"
	case Detour:
		return "Detour"
	default:
		return "Unknown"
	}
}

const (
	NextReward   = 0.1
	PrevReward   = -0.5
	DetourReward = -2.0

	// EndReward is the bonus added when a move lands on the terminal state.
	EndReward = 10.0
)

// New builds a branched chain of the given length. branchStates lists
// the indices where Detour is legal. Next clamps at the terminal
// state and Prev at the start; neither is penalized beyond its base
// reward.
//
// New は指定された長さの分岐付き一本道を構築します。branchStates は
// Detour が合法になる添字の一覧です。Next は終端で、Prev は出発点で
// 打ち止めになり、基本報酬以外のペナルティはありません。
func New(length int, branchStates []int) mdp.Logic[State, Action] {
	states := make([]State, length)
	for i := range states {
		states[i] = State(i)
	}

	actionsFunc := func(state State) []Action {
		actions := []Action{Prev, Next}
		if slices.Contains(branchStates, int(state)) {
			actions = append(actions, Detour)
		}
		return actions
	}

	transitionFunc := func(state State, action Action) (measure.Measure[State], float64, error) {
		current := int(state)
		var next int
		var reward float64

		switch action {
		case Next:
			next = current + 1
			if next > length-1 {
				next = length - 1
			}
			reward = NextReward
		case Prev:
			next = current - 1
			if next < 0 {
				next = 0
			}
			reward = PrevReward
		case Detour:
			next = 0
			reward = DetourReward
		}

		if next == length-1 {
			reward += EndReward
		}
		return measure.Deterministic(State(next)), reward, nil
	}

	return mdp.Logic[State, Action]{
		States:      mdp.NewSampler(states),
		ActionsFunc: actionsFunc,
		IsFinalFunc: func(state State) bool {
			return int(state) == length-1
		},
		TransitionFunc: transitionFunc,
	}
}
