// Package mdp defines the contract for finite discrete Markov decision
// processes. A process is described by a Logic value: a state universe
// plus functions for legal actions, terminality and stochastic
// transitions. Consistency validation is centralized in Logic.Validate.
//
// Package mdp は、有限離散マルコフ決定過程の契約を定義します。
// 過程は Logic 値（状態全体と、合法行動・終端判定・確率的遷移の関数）で
// 記述されます。整合性チェックは Logic.Validate に集約されています。
package mdp

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/sw965/omw/mathx/randx"
	"github.com/sw965/raven/measure"
)

var (
	ErrNilLogicFunc = errors.New("Logicエラー: フィールドの関数がnilです")
	ErrEmptyStates  = errors.New("状態空間エラー: 状態が1つも存在しません")
)

// Sampler is a finite ordered universe of values that supports uniform
// random drawing.
//
// Sampler は、一様ランダム抽出が可能な有限の順序付き集合です。
type Sampler[T comparable] []T

func NewSampler[T comparable](values []T) Sampler[T] {
	return Sampler[T](values)
}

// Choice draws one value uniformly at random.
func (s Sampler[T]) Choice(rng *rand.Rand) (T, error) {
	return randx.Choice(s, rng)
}

// StateAction is a state paired with one of its legal actions.
type StateAction[S, A comparable] struct {
	State  S
	Action A
}

type ActionsFunc[S, A comparable] func(S) []A
type IsFinalFunc[S comparable] func(S) bool
type IsGoalFunc[S comparable] func(S) bool

// TransitionFunc returns the distribution over successor states and
// the immediate reward for taking an action in a state.
type TransitionFunc[S, A comparable] func(S, A) (measure.Measure[S], float64, error)

// Logic describes one decision process. IsGoalFunc may be nil, in
// which case goal states coincide with final states.
//
// Logic は1つの決定過程を記述します。IsGoalFunc が nil の場合、
// ゴール状態は終端状態と一致します。
type Logic[S, A comparable] struct {
	States         Sampler[S]
	ActionsFunc    ActionsFunc[S, A]
	IsFinalFunc    IsFinalFunc[S]
	IsGoalFunc     IsGoalFunc[S]
	TransitionFunc TransitionFunc[S, A]
}

func (l Logic[S, A]) Validate() error {
	if len(l.States) == 0 {
		return ErrEmptyStates
	}
	if l.ActionsFunc == nil {
		return fmt.Errorf("%w: ActionsFunc", ErrNilLogicFunc)
	}
	if l.IsFinalFunc == nil {
		return fmt.Errorf("%w: IsFinalFunc", ErrNilLogicFunc)
	}
	// IsGoalFuncは任意。nilの場合はIsFinalFuncへフォールバックする。
	if l.TransitionFunc == nil {
		return fmt.Errorf("%w: TransitionFunc", ErrNilLogicFunc)
	}
	return nil
}

// AllStates returns the fixed state universe.
func (l Logic[S, A]) AllStates() Sampler[S] {
	return l.States
}

// ActionsAt returns the legal actions in state, in a stable order.
// The slice may be empty for dead-end states.
//
// ActionsAt は、stateにおける合法行動を安定した順序で返します。
// 行き止まりの状態では空スライスになる事があります。
func (l Logic[S, A]) ActionsAt(state S) []A {
	return l.ActionsFunc(state)
}

func (l Logic[S, A]) IsFinalState(state S) bool {
	return l.IsFinalFunc(state)
}

// IsGoal reports whether state is a goal. Falls back to IsFinalState
// when no goal predicate was provided.
func (l Logic[S, A]) IsGoal(state S) bool {
	if l.IsGoalFunc == nil {
		return l.IsFinalFunc(state)
	}
	return l.IsGoalFunc(state)
}

// StochasticTransition returns the successor distribution and the
// immediate reward for taking action in state.
func (l Logic[S, A]) StochasticTransition(state S, action A) (measure.Measure[S], float64, error) {
	return l.TransitionFunc(state, action)
}

// AllStateActionPairs flattens the universe into every (state, legal
// action) pair, states in universe order, actions in ActionsAt order.
//
// AllStateActionPairs は、全ての (状態, 合法行動) の組を列挙します。
// 状態は状態空間の順、行動は ActionsAt の順です。
func (l Logic[S, A]) AllStateActionPairs() []StateAction[S, A] {
	pairs := make([]StateAction[S, A], 0, len(l.States))
	for _, s := range l.States {
		for _, a := range l.ActionsFunc(s) {
			pairs = append(pairs, StateAction[S, A]{State: s, Action: a})
		}
	}
	return pairs
}

// RandomState draws a uniform random state from the universe.
func (l Logic[S, A]) RandomState(rng *rand.Rand) (S, error) {
	return l.States.Choice(rng)
}
