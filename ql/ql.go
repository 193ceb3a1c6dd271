// Package ql provides tabular temporal-difference learning over a
// decision process described by mdp.Logic. SARSA learns on-policy,
// QLearning learns off-policy; both share one training loop and
// return the learned action-value table.
//
// Package ql は、mdp.Logic で記述された決定過程に対する表形式の
// TD学習を提供します。SARSA は方策オン型、QLearning は方策オフ型で、
// 両者は1つの学習ループを共有し、学習済みの行動価値テーブルを返します。
package ql

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/chewxy/math32"
	"github.com/sw965/omw/mathx"
	"github.com/sw965/omw/mathx/randx"
	"github.com/sw965/raven/mdp"
	"github.com/sw965/raven/measure"
)

var (
	ErrInvalidConfig      = errors.New("Configエラー: 値が範囲外です")
	ErrNoAction           = errors.New("行動エラー: 選択可能な行動が存在しません")
	ErrInvalidTemperature = errors.New("温度エラー: 正の有限値である必要があります")
)

// UpdateQ applies one Bellman update and returns the new estimate.
func UpdateQ(q, nextQ, reward, lr, discountRate float64) float64 {
	qRatio := 1.0 - lr
	newQ := (reward + discountRate*nextQ)
	return (qRatio * q) + (lr * newQ)
}

// ActionValue is the Q-table. Per-state actions keep their
// registration order, so greedy selection is deterministic. The table
// also tracks the deduplicated universe of all registered actions,
// which the exploration branch of EpsilonGreedy draws from.
//
// ActionValue はQテーブルです。状態毎の行動は登録順を保持する為、
// 貪欲選択は決定的になります。テーブルは登録された全行動の重複なしの
// 集合も保持しており、EpsilonGreedy の探索側はそこから抽出します。
type ActionValue[S, A comparable] struct {
	table       map[S]map[A]float64
	actionOrder map[S][]A
	universe    mdp.Sampler[A]
}

// NewActionValue builds a zero-initialized table over every given
// (state, action) pair, preserving their order.
func NewActionValue[S, A comparable](pairs []mdp.StateAction[S, A]) ActionValue[S, A] {
	av := ActionValue[S, A]{
		table:       map[S]map[A]float64{},
		actionOrder: map[S][]A{},
		universe:    mdp.Sampler[A]{},
	}
	seen := map[A]bool{}
	for _, pair := range pairs {
		av.Insert(pair.State, pair.Action, 0.0)
		if !seen[pair.Action] {
			seen[pair.Action] = true
			av.universe = append(av.universe, pair.Action)
		}
	}
	return av
}

// Get returns the estimate for (state, action), 0 when unregistered.
func (av ActionValue[S, A]) Get(state S, action A) float64 {
	return av.table[state][action]
}

// Insert sets the estimate for (state, action). A first insertion for
// the pair registers the action at the end of the state's order.
func (av ActionValue[S, A]) Insert(state S, action A, q float64) {
	qs, ok := av.table[state]
	if !ok {
		qs = map[A]float64{}
		av.table[state] = qs
	}
	if _, ok := qs[action]; !ok {
		av.actionOrder[state] = append(av.actionOrder[state], action)
	}
	qs[action] = q
}

// Actions returns the actions registered for state, in order.
func (av ActionValue[S, A]) Actions(state S) []A {
	return av.actionOrder[state]
}

// Register tracks every given action for state with a zero estimate,
// keeping estimates that already exist. Composed processes can step
// into states their enumerated universe does not list, and those
// states join the table here on first visit.
func (av ActionValue[S, A]) Register(state S, actions []A) {
	for _, a := range actions {
		if _, ok := av.table[state][a]; !ok {
			av.Insert(state, a, 0.0)
		}
	}
}

// ActionUniverse returns every registered action, deduplicated, in
// first-registration order.
func (av ActionValue[S, A]) ActionUniverse() mdp.Sampler[A] {
	return av.universe
}

// Greedy returns the highest-valued action registered for state.
// Ties resolve to the earliest registered action.
//
// Greedy は、stateに登録された行動の内、最も価値が高いものを返します。
// 同値の場合は、先に登録された行動が選ばれます。
func (av ActionValue[S, A]) Greedy(state S) (A, error) {
	actions := av.actionOrder[state]
	if len(actions) == 0 {
		var zero A
		return zero, fmt.Errorf("%w: state = %v", ErrNoAction, state)
	}

	best := actions[0]
	bestQ := av.table[state][best]
	for _, a := range actions[1:] {
		q := av.table[state][a]
		if q > bestQ {
			best = a
			bestQ = q
		}
	}
	return best, nil
}

// EpsilonGreedy explores with probability eps by drawing uniformly
// from the whole action universe (the drawn action may be illegal in
// state; the process decides how such actions behave), and otherwise
// exploits via Greedy.
//
// EpsilonGreedy は、確率 eps で行動全体から一様に抽出し（抽出された
// 行動が state で合法とは限らず、その場合の挙動は過程側が決めます）、
// それ以外は Greedy を用います。
func (av ActionValue[S, A]) EpsilonGreedy(state S, eps float64, rng *rand.Rand) (A, error) {
	if rng.Float64() < eps {
		return randx.Choice(av.universe, rng)
	}
	return av.Greedy(state)
}

// Boltzmann draws an action registered for state with probability
// proportional to exp(Q/temperature). Higher temperatures flatten the
// distribution, lower ones approach greedy selection.
//
// Boltzmann は、stateに登録された行動を exp(Q/温度) に比例する確率で
// 抽出します。温度が高いほど分布は平坦になり、低いほど貪欲選択に
// 近づきます。
func (av ActionValue[S, A]) Boltzmann(state S, temperature float32, rng *rand.Rand) (A, error) {
	var zero A
	if temperature <= 0 || mathx.IsNaN(temperature) || mathx.IsInf(temperature, 0) {
		return zero, fmt.Errorf("%w: %v", ErrInvalidTemperature, temperature)
	}

	actions := av.actionOrder[state]
	if len(actions) == 0 {
		return zero, fmt.Errorf("%w: state = %v", ErrNoAction, state)
	}

	qs := make([]float32, len(actions))
	for i, a := range actions {
		qs[i] = float32(av.table[state][a]) / temperature
	}

	maxQ := qs[0] // オーバーフロー対策
	for _, q := range qs[1:] {
		if q > maxQ {
			maxQ = q
		}
	}

	ws := make([]float32, len(qs))
	for i, q := range qs {
		ws[i] = math32.Exp(q - maxQ)
	}

	idx, err := randx.IntByWeight(ws, rng)
	if err != nil {
		return zero, err
	}
	return actions[idx], nil
}

// Config holds the training hyperparameters. Unknown concerns are
// deliberately absent.
type Config struct {
	NumEpisodes     int
	MaxNumSteps     int
	LearningRate    float64
	DiscountFactor  float64
	ExplorationRate float64
}

func (c Config) Validate() error {
	if c.NumEpisodes < 1 {
		return fmt.Errorf("%w: NumEpisodes = %d", ErrInvalidConfig, c.NumEpisodes)
	}
	if c.MaxNumSteps < 1 {
		return fmt.Errorf("%w: MaxNumSteps = %d", ErrInvalidConfig, c.MaxNumSteps)
	}
	if math.IsNaN(c.LearningRate) || c.LearningRate <= 0.0 || c.LearningRate > 1.0 {
		return fmt.Errorf("%w: LearningRate = %v", ErrInvalidConfig, c.LearningRate)
	}
	if math.IsNaN(c.DiscountFactor) || c.DiscountFactor < 0.0 || c.DiscountFactor > 1.0 {
		return fmt.Errorf("%w: DiscountFactor = %v", ErrInvalidConfig, c.DiscountFactor)
	}
	if math.IsNaN(c.ExplorationRate) || c.ExplorationRate < 0.0 || c.ExplorationRate > 1.0 {
		return fmt.Errorf("%w: ExplorationRate = %v", ErrInvalidConfig, c.ExplorationRate)
	}
	return nil
}

// SARSA trains on-policy: the bootstrap action for the TD target is
// the action that is actually executed next.
//
// SARSA は方策オン型で学習します。TDターゲットのブートストラップ行動と、
// 次に実際に実行される行動が一致します。
func SARSA[S, A comparable](logic mdp.Logic[S, A], config Config, rng *rand.Rand) (ActionValue[S, A], error) {
	return train(logic, config, false, rng)
}

// QLearning trains off-policy: the TD target bootstraps from the
// greedy action, while the executed next action is a fresh
// epsilon-greedy draw.
//
// QLearning は方策オフ型で学習します。TDターゲットは貪欲行動で
// ブートストラップし、次に実行される行動は改めてε-greedyで抽出します。
func QLearning[S, A comparable](logic mdp.Logic[S, A], config Config, rng *rand.Rand) (ActionValue[S, A], error) {
	return train(logic, config, true, rng)
}

func train[S, A comparable](logic mdp.Logic[S, A], config Config, offPolicy bool, rng *rand.Rand) (ActionValue[S, A], error) {
	if err := logic.Validate(); err != nil {
		return ActionValue[S, A]{}, err
	}

	if err := config.Validate(); err != nil {
		return ActionValue[S, A]{}, err
	}

	av := NewActionValue(logic.AllStateActionPairs())

	for ep := 0; ep < config.NumEpisodes; ep++ {
		state, err := logic.RandomState(rng)
		if err != nil {
			return ActionValue[S, A]{}, err
		}

		// 合法行動が無い状態から始まった場合、そのエピソードは飛ばす。
		if len(logic.ActionsAt(state)) == 0 {
			continue
		}

		action, err := av.EpsilonGreedy(state, config.ExplorationRate, rng)
		if err != nil {
			return ActionValue[S, A]{}, err
		}

		for step := 0; step < config.MaxNumSteps; step++ {
			next, reward, err := logic.StochasticTransition(state, action)
			if err != nil {
				return ActionValue[S, A]{}, err
			}

			nextState, err := next.Sample(rng)
			if err != nil {
				// 後続の分布が空なら、その場に留まったものとして扱う。
				if errors.Is(err, measure.ErrEmptyMeasure) {
					nextState = state
				} else {
					return ActionValue[S, A]{}, err
				}
			}

			nextActions := logic.ActionsAt(nextState)
			if len(nextActions) == 0 {
				break
			}

			// 状態空間に列挙されない状態に到達する事があるので、
			// 未登録ならここでテーブルに登録する。
			av.Register(nextState, nextActions)

			var bootstrap A
			if offPolicy {
				bootstrap, err = av.Greedy(nextState)
			} else {
				bootstrap, err = av.EpsilonGreedy(nextState, config.ExplorationRate, rng)
			}
			if err != nil {
				return ActionValue[S, A]{}, err
			}

			q := av.Get(state, action)
			nextQ := av.Get(nextState, bootstrap)
			av.Insert(state, action, UpdateQ(q, nextQ, reward, config.LearningRate, config.DiscountFactor))

			state = nextState
			if offPolicy {
				// 貪欲なブートストラップ行動はターゲットの計算にのみ使い、
				// 実行する行動は改めて抽出する。
				action, err = av.EpsilonGreedy(nextState, config.ExplorationRate, rng)
				if err != nil {
					return ActionValue[S, A]{}, err
				}
			} else {
				action = bootstrap
			}

			if logic.IsFinalState(state) {
				break
			}
		}
	}
	return av, nil
}
