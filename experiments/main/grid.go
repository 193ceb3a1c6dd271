package main

import (
	"errors"
	"fmt"
	"log"
	"math/rand/v2"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"
	"github.com/sw965/raven/experiments"
	"github.com/sw965/raven/mdp"
	"github.com/sw965/raven/measure"
	"github.com/sw965/raven/products"
	"github.com/sw965/raven/ql"
	"github.com/sw965/raven/world/grid"
)

type gridPair = measure.Pair[grid.Cell, grid.Cell]
type boxGridAction = products.BoxAction[grid.Action, grid.Action]
type pairGridAction = measure.Pair[grid.Action, grid.Action]

func newGridCmd() *cobra.Command {
	var seed uint64

	cmd := &cobra.Command{
		Use:   "grid",
		Short: "異なるゴールと報酬を持つ盤面の合成を比較する",
		RunE: func(cmd *cobra.Command, args []string) error {
			rng := newRngs(1, seed)[0]
			if err := runGridGoalsExperiment(rng); err != nil {
				return err
			}
			return runGridPenaltyExperiment(rng)
		},
	}

	cmd.Flags().Uint64Var(&seed, "seed", envUint64("RAVEN_SEED", 0), "乱数シード (0で毎回変わる)")
	return cmd
}

// runGridGoalsExperiment は、ゴールもボーナスも異なる2つの盤面を
// 合成し、学習した方策の質とゴール到達率を比較する。
func runGridGoalsExperiment(rng *rand.Rand) error {
	log.Println("盤面の世界: 異なるゴールを持つ成分の合成")

	goalA := grid.Cell{Row: 0, Col: 2}
	goalB := grid.Cell{Row: 2, Col: 0}

	boardA, err := grid.New(grid.Config{
		Rows:       3,
		Cols:       3,
		Goals:      []grid.Cell{goalA},
		Terminals:  []grid.Cell{goalA},
		StepReward: -1.0,
		GoalBonus:  40.0,
	})
	if err != nil {
		return err
	}

	boardB, err := grid.New(grid.Config{
		Rows:       3,
		Cols:       3,
		Goals:      []grid.Cell{goalB},
		Terminals:  []grid.Cell{goalB},
		StepReward: -1.0,
		GoalBonus:  10.0,
	})
	if err != nil {
		return err
	}

	bp := products.Box(boardA, boardB)
	cp := products.Cartesian(boardA, boardB)

	bpStats := experiments.AnalyzeActionSpace(bp)
	cpStats := experiments.AnalyzeActionSpace(cp)
	fmt.Printf("  状態数: BP=%d, CP=%d\n", bpStats.NumStates, cpStats.NumStates)
	fmt.Printf("  状態あたりの平均行動数: BP=%.1f, CP=%.1f\n", bpStats.AvgActionsPerState, cpStats.AvgActionsPerState)

	config := ql.Config{
		NumEpisodes:     2000,
		MaxNumSteps:     20,
		LearningRate:    0.1,
		DiscountFactor:  0.95,
		ExplorationRate: 0.1,
	}

	qBP, err := ql.QLearning(bp, config, rng)
	if err != nil {
		return err
	}
	qCP, err := ql.QLearning(cp, config, rng)
	if err != nil {
		return err
	}

	learnedBP := experiments.GreedyPolicy(bp, qBP)
	learnedCP := experiments.GreedyPolicy(cp, qCP)

	optBP := optimalGridBoxPolicy(bp, goalA, goalB, 1.0, 0.5)
	optCP := optimalGridCartesianPolicy(cp, goalA, goalB)

	fmt.Printf("\n%s\n", aurora.Bold("ヒューリスティック最適方策との距離:"))
	fmt.Printf("  BP 距離: %.4f\n", experiments.PolicyDistance(learnedBP, optBP))
	fmt.Printf("  CP 距離: %.4f\n", experiments.PolicyDistance(learnedCP, optCP))

	evalRuns := 200
	bpHits, err := evaluateGoalHits(bp, learnedBP, goalA, goalB, evalRuns, config.MaxNumSteps, rng)
	if err != nil {
		return err
	}
	cpHits, err := evaluateGoalHits(cp, learnedCP, goalA, goalB, evalRuns, config.MaxNumSteps, rng)
	if err != nil {
		return err
	}

	fmt.Printf("\n%s\n", aurora.Bold(fmt.Sprintf("%d回の評価でのゴール到達率:", evalRuns)))
	fmt.Printf("  BP: ゴールA %.1f%% | ゴールB %.1f%% | 両方 %.1f%%\n", bpHits.A*100.0, bpHits.B*100.0, bpHits.Both*100.0)
	fmt.Printf("  CP: ゴールA %.1f%% | ゴールB %.1f%% | 両方 %.1f%%\n", cpHits.A*100.0, cpHits.B*100.0, cpHits.Both*100.0)
	return nil
}

// runGridPenaltyExperiment は、価値のあるゴールを持つ盤面1つと
// ペナルティしか無い盤面2つを3次元に合成し、平均収益を比較する。
func runGridPenaltyExperiment(rng *rand.Rand) error {
	fmt.Println()
	log.Println("ペナルティ次元を加えた3盤面の合成")

	goalA := grid.Cell{Row: 0, Col: 2}

	boardA, err := grid.New(grid.Config{
		Rows:       3,
		Cols:       3,
		Goals:      []grid.Cell{goalA},
		Terminals:  []grid.Cell{goalA},
		StepReward: -1.0,
		GoalBonus:  40.0,
	})
	if err != nil {
		return err
	}

	// ゴールを持たず、1歩毎のペナルティが重いだけの盤面。
	penalty := grid.Config{
		Rows:       3,
		Cols:       3,
		StepReward: -3.0,
	}
	boardB, err := grid.New(penalty)
	if err != nil {
		return err
	}
	boardC, err := grid.New(penalty)
	if err != nil {
		return err
	}

	bp3 := products.Box(products.Box(boardA, boardB), boardC)
	cp3 := products.Cartesian(products.Cartesian(boardA, boardB), boardC)

	bpStats := experiments.AnalyzeActionSpace(bp3)
	cpStats := experiments.AnalyzeActionSpace(cp3)
	fmt.Printf("  状態数: BP3=%d, CP3=%d\n", bpStats.NumStates, cpStats.NumStates)
	fmt.Printf("  状態あたりの平均行動数: BP3=%.1f, CP3=%.1f\n", bpStats.AvgActionsPerState, cpStats.AvgActionsPerState)

	config := ql.Config{
		NumEpisodes:     3000,
		MaxNumSteps:     25,
		LearningRate:    0.1,
		DiscountFactor:  0.95,
		ExplorationRate: 0.1,
	}

	qBP3, err := ql.QLearning(bp3, config, rng)
	if err != nil {
		return err
	}
	qCP3, err := ql.QLearning(cp3, config, rng)
	if err != nil {
		return err
	}

	evalRuns := 200
	bp3Return, err := experiments.AverageReturn(bp3, experiments.GreedyPolicy(bp3, qBP3), evalRuns, config.MaxNumSteps, rng)
	if err != nil {
		return err
	}
	cp3Return, err := experiments.AverageReturn(cp3, experiments.GreedyPolicy(cp3, qCP3), evalRuns, config.MaxNumSteps, rng)
	if err != nil {
		return err
	}

	fmt.Printf("\n%s\n", aurora.Bold(fmt.Sprintf("%d回の評価での平均エピソード収益:", evalRuns)))
	fmt.Printf("  BP3 平均収益: %.2f\n", bp3Return)
	fmt.Printf("  CP3 平均収益: %.2f\n", cp3Return)
	return nil
}

type goalHits struct {
	A    float64
	B    float64
	Both float64
}

// evaluateGoalHits は学習済み方策を展開し、各成分が自身のゴールに
// 到達したエピソードの割合を数える。
func evaluateGoalHits[A comparable](logic mdp.Logic[gridPair, A], policy map[gridPair]A, goalA, goalB grid.Cell, episodes, maxSteps int, rng *rand.Rand) (goalHits, error) {
	var hits goalHits
	for ep := 0; ep < episodes; ep++ {
		state, err := logic.RandomState(rng)
		if err != nil {
			return goalHits{}, err
		}

		reachedA := false
		reachedB := false
		for step := 0; step < maxSteps; step++ {
			action, ok := policy[state]
			if !ok {
				actions := logic.ActionsAt(state)
				if len(actions) == 0 {
					break
				}
				action = actions[0]
			}

			m, _, err := logic.StochasticTransition(state, action)
			if err != nil {
				return goalHits{}, err
			}

			next, err := m.Sample(rng)
			if err != nil {
				if errors.Is(err, measure.ErrEmptyMeasure) {
					next = state
				} else {
					return goalHits{}, err
				}
			}

			if next.First == goalA {
				reachedA = true
			}
			if next.Second == goalB {
				reachedB = true
			}

			state = next
			if logic.IsFinalState(state) {
				break
			}
		}

		if reachedA {
			hits.A++
		}
		if reachedB {
			hits.B++
		}
		if reachedA && reachedB {
			hits.Both++
		}
	}

	n := float64(episodes)
	hits.A /= n
	hits.B /= n
	hits.Both /= n
	return hits, nil
}

func manhattan(a, b grid.Cell) int {
	dr := a.Row - b.Row
	if dr < 0 {
		dr = -dr
	}
	dc := a.Col - b.Col
	if dc < 0 {
		dc = -dc
	}
	return dr + dc
}

// actionToward はゴールに1歩近づく方向を返す。既に到達している
// 場合はUpを返す。
func actionToward(from, to grid.Cell) grid.Action {
	switch {
	case from.Row < to.Row:
		return grid.Down
	case from.Row > to.Row:
		return grid.Up
	case from.Col < to.Col:
		return grid.Right
	case from.Col > to.Col:
		return grid.Left
	default:
		return grid.Up
	}
}

// optimalGridBoxPolicy は、重み付きマンハッタン距離が大きい方の成分を
// 先にゴールへ進めるヒューリスティック方策を返す。
func optimalGridBoxPolicy(logic mdp.Logic[gridPair, boxGridAction], goalA, goalB grid.Cell, weightA, weightB float64) map[gridPair]boxGridAction {
	policy := map[gridPair]boxGridAction{}
	for _, s := range logic.AllStates() {
		distA := manhattan(s.First, goalA)
		distB := manhattan(s.Second, goalB)

		var action boxGridAction
		if distA > 0 && (weightA*float64(distA) >= weightB*float64(distB) || distB == 0) {
			action = products.NewLeft[grid.Action, grid.Action](actionToward(s.First, goalA))
		} else if distB > 0 {
			action = products.NewRight[grid.Action, grid.Action](actionToward(s.Second, goalB))
		} else {
			action = products.NewLeft[grid.Action, grid.Action](grid.Up)
		}
		policy[s] = action
	}
	return policy
}

func optimalGridCartesianPolicy(logic mdp.Logic[gridPair, pairGridAction], goalA, goalB grid.Cell) map[gridPair]pairGridAction {
	policy := map[gridPair]pairGridAction{}
	for _, s := range logic.AllStates() {
		policy[s] = measure.NewPair(actionToward(s.First, goalA), actionToward(s.Second, goalB))
	}
	return policy
}
