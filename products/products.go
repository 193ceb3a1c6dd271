// Package products composes two decision processes into one.
// Box interleaves them (one component advances per step, the other
// holds), while Cartesian runs them synchronously (both advance).
//
// Package products は、2つの決定過程を1つに合成します。
// Box は交互実行（1ステップで一方のみが進み、他方は保持）、
// Cartesian は同期実行（両方が同時に進む）の合成です。
package products

import (
	"github.com/sw965/raven/mdp"
	"github.com/sw965/raven/measure"
)

// Side tags which component a Box action drives.
type Side int

const (
	Left Side = iota
	Right
)

// BoxAction is a tagged choice: an action for exactly one component.
// Values are comparable and safe to use as table keys.
//
// BoxAction はタグ付きの選択肢で、どちらか一方の成分に対する行動です。
// 比較可能であり、テーブルのキーとして安全に使えます。
type BoxAction[A1, A2 comparable] struct {
	side  Side
	left  A1
	right A2
}

func NewLeft[A1, A2 comparable](action A1) BoxAction[A1, A2] {
	return BoxAction[A1, A2]{side: Left, left: action}
}

func NewRight[A1, A2 comparable](action A2) BoxAction[A1, A2] {
	return BoxAction[A1, A2]{side: Right, right: action}
}

func (a BoxAction[A1, A2]) Side() Side {
	return a.side
}

// LeftAction returns the payload and true when the action drives the
// first component.
func (a BoxAction[A1, A2]) LeftAction() (A1, bool) {
	return a.left, a.side == Left
}

// RightAction returns the payload and true when the action drives the
// second component.
func (a BoxAction[A1, A2]) RightAction() (A2, bool) {
	return a.right, a.side == Right
}

// Box composes two processes into an interleaved one. Each composed
// step advances exactly one component; the other is held in place via
// a point measure. The reward is the advanced component's reward alone.
// The composed process is final only when both components are final.
//
// The composed state universe pairs the two universes POSITIONALLY:
// the i-th state of one with the i-th state of the other, truncated to
// the shorter universe. Reachable composed states outside that zip are
// therefore absent from the universe, so value tables built from it
// cover only the diagonal-style pairs.
//
// Box は2つの過程を交互実行型に合成します。合成後の1ステップでは
// 一方の成分のみが進み、他方は点測度によってその場に保持されます。
// 報酬は進んだ成分の報酬のみです。両方の成分が終端の時に限り、
// 合成後も終端になります。
//
// 合成後の状態空間は、両状態空間を位置的に（i番目同士で）対にした
// もので、短い方の長さに切り詰められます。
func Box[S1, S2, A1, A2 comparable](m1 mdp.Logic[S1, A1], m2 mdp.Logic[S2, A2]) mdp.Logic[measure.Pair[S1, S2], BoxAction[A1, A2]] {
	n := len(m1.States)
	if len(m2.States) < n {
		n = len(m2.States)
	}

	states := make([]measure.Pair[S1, S2], 0, n)
	for i := 0; i < n; i++ {
		states = append(states, measure.NewPair(m1.States[i], m2.States[i]))
	}

	actionsFunc := func(pair measure.Pair[S1, S2]) []BoxAction[A1, A2] {
		lefts := m1.ActionsAt(pair.First)
		rights := m2.ActionsAt(pair.Second)
		actions := make([]BoxAction[A1, A2], 0, len(lefts)+len(rights))
		for _, a := range lefts {
			actions = append(actions, NewLeft[A1, A2](a))
		}
		for _, a := range rights {
			actions = append(actions, NewRight[A1, A2](a))
		}
		return actions
	}

	isFinalFunc := func(pair measure.Pair[S1, S2]) bool {
		return m1.IsFinalState(pair.First) && m2.IsFinalState(pair.Second)
	}

	transitionFunc := func(pair measure.Pair[S1, S2], action BoxAction[A1, A2]) (measure.Measure[measure.Pair[S1, S2]], float64, error) {
		if a1, ok := action.LeftAction(); ok {
			next1, reward, err := m1.StochasticTransition(pair.First, a1)
			if err != nil {
				return measure.Measure[measure.Pair[S1, S2]]{}, 0.0, err
			}
			joint, err := measure.Product(next1, measure.Deterministic(pair.Second))
			if err != nil {
				return measure.Measure[measure.Pair[S1, S2]]{}, 0.0, err
			}
			return joint, reward, nil
		}

		a2, _ := action.RightAction()
		next2, reward, err := m2.StochasticTransition(pair.Second, a2)
		if err != nil {
			return measure.Measure[measure.Pair[S1, S2]]{}, 0.0, err
		}
		joint, err := measure.Product(measure.Deterministic(pair.First), next2)
		if err != nil {
			return measure.Measure[measure.Pair[S1, S2]]{}, 0.0, err
		}
		return joint, reward, nil
	}

	return mdp.Logic[measure.Pair[S1, S2], BoxAction[A1, A2]]{
		States:         mdp.NewSampler(states),
		ActionsFunc:    actionsFunc,
		IsFinalFunc:    isFinalFunc,
		TransitionFunc: transitionFunc,
	}
}

// Cartesian composes two processes into a synchronous one. A composed
// action is a pair of component actions, both components advance every
// step, the successor distribution is the independent joint, and the
// reward is the sum of the component rewards. The composed state
// universe is the full cross product of the component universes.
//
// Cartesian は2つの過程を同期実行型に合成します。合成後の行動は
// 成分行動の対で、毎ステップ両方の成分が進みます。後続状態の分布は
// 独立な同時測度、報酬は成分報酬の合計です。合成後の状態空間は
// 両状態空間の完全な直積です。
func Cartesian[S1, S2, A1, A2 comparable](m1 mdp.Logic[S1, A1], m2 mdp.Logic[S2, A2]) mdp.Logic[measure.Pair[S1, S2], measure.Pair[A1, A2]] {
	states := make([]measure.Pair[S1, S2], 0, len(m1.States)*len(m2.States))
	for _, s1 := range m1.States {
		for _, s2 := range m2.States {
			states = append(states, measure.NewPair(s1, s2))
		}
	}

	actionsFunc := func(pair measure.Pair[S1, S2]) []measure.Pair[A1, A2] {
		lefts := m1.ActionsAt(pair.First)
		rights := m2.ActionsAt(pair.Second)
		actions := make([]measure.Pair[A1, A2], 0, len(lefts)*len(rights))
		for _, a1 := range lefts {
			for _, a2 := range rights {
				actions = append(actions, measure.NewPair(a1, a2))
			}
		}
		return actions
	}

	isFinalFunc := func(pair measure.Pair[S1, S2]) bool {
		return m1.IsFinalState(pair.First) && m2.IsFinalState(pair.Second)
	}

	transitionFunc := func(pair measure.Pair[S1, S2], action measure.Pair[A1, A2]) (measure.Measure[measure.Pair[S1, S2]], float64, error) {
		next1, reward1, err := m1.StochasticTransition(pair.First, action.First)
		if err != nil {
			return measure.Measure[measure.Pair[S1, S2]]{}, 0.0, err
		}

		next2, reward2, err := m2.StochasticTransition(pair.Second, action.Second)
		if err != nil {
			return measure.Measure[measure.Pair[S1, S2]]{}, 0.0, err
		}

		joint, err := measure.Product(next1, next2)
		if err != nil {
			return measure.Measure[measure.Pair[S1, S2]]{}, 0.0, err
		}
		return joint, reward1 + reward2, nil
	}

	return mdp.Logic[measure.Pair[S1, S2], measure.Pair[A1, A2]]{
		States:         mdp.NewSampler(states),
		ActionsFunc:    actionsFunc,
		IsFinalFunc:    isFinalFunc,
		TransitionFunc: transitionFunc,
	}
}
