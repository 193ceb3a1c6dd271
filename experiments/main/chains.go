package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/sw965/raven/experiments"
	"github.com/sw965/raven/mdp"
	"github.com/sw965/raven/measure"
	"github.com/sw965/raven/products"
	"github.com/sw965/raven/ql"
	"github.com/sw965/raven/world/chain"
)

type chainPair = measure.Pair[chain.State, chain.State]
type boxChainAction = products.BoxAction[chain.Action, chain.Action]
type pairChainAction = measure.Pair[chain.Action, chain.Action]

func newChainsCmd() *cobra.Command {
	var runs, parallelism, episodes int
	var seed uint64

	cmd := &cobra.Command{
		Use:   "chains",
		Short: "分岐付きの一本道でBox合成とCartesian合成を比較する",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Println("分岐付きの一本道: Box合成 vs Cartesian合成")

			configs := []struct {
				length   int
				branches []int
			}{
				{length: 6, branches: []int{2, 4}},
				{length: 8, branches: []int{3, 5}},
			}

			for _, c := range configs {
				if err := runChainsExperiment(c.length, c.branches, episodes, runs, parallelism, seed); err != nil {
					return err
				}
			}

			fmt.Println()
			fmt.Println("分岐は一部の状態にしか無いため、行動空間は状態毎に異なる。")
			fmt.Println("BPは成分毎に独立して分岐の回避を学習できる。")
			return nil
		},
	}

	cmd.Flags().IntVar(&runs, "runs", envInt("RAVEN_NUM_RUNS", 10), "試行回数")
	cmd.Flags().IntVar(&parallelism, "parallel", envInt("RAVEN_PARALLEL", 1), "並列ワーカー数")
	cmd.Flags().IntVar(&episodes, "episodes", envInt("RAVEN_NUM_EPISODES", 1000), "エピソード数")
	cmd.Flags().Uint64Var(&seed, "seed", envUint64("RAVEN_SEED", 0), "乱数シード (0で毎回変わる)")
	return cmd
}

func runChainsExperiment(length int, branches []int, episodes, runs, parallelism int, seed uint64) error {
	fmt.Printf("\n長さ %d、分岐 %v\n", length, branches)

	bp := products.Box(chain.New(length, branches), chain.New(length, branches))
	cp := products.Cartesian(chain.New(length, branches), chain.New(length, branches))

	bpStats := experiments.AnalyzeActionSpace(bp)
	cpStats := experiments.AnalyzeActionSpace(cp)
	fmt.Printf("  状態数: BP=%d, CP=%d\n", bpStats.NumStates, cpStats.NumStates)
	fmt.Printf("  状態あたりの平均行動数: BP=%.1f, CP=%.1f\n", bpStats.AvgActionsPerState, cpStats.AvgActionsPerState)

	config := ql.Config{
		NumEpisodes:     episodes,
		MaxNumSteps:     length * 3,
		LearningRate:    0.1,
		DiscountFactor:  0.9,
		ExplorationRate: 0.1,
	}

	bpTrial := experiments.Trial[chainPair, boxChainAction]{
		Logic:   bp,
		Config:  config,
		Optimal: optimalBoxChainPolicy(bp),
	}
	cpTrial := experiments.Trial[chainPair, pairChainAction]{
		Logic:   cp,
		Config:  config,
		Optimal: optimalCartesianChainPolicy(cp),
	}

	bpDists, err := bpTrial.RunMany(runs, newRngs(parallelism, seed))
	if err != nil {
		return err
	}
	cpDists, err := cpTrial.RunMany(runs, newRngs(parallelism, seed))
	if err != nil {
		return err
	}

	report := experiments.NewReport(fmt.Sprintf("分岐付き一本道 長さ%d (%dエピソード)", length, episodes))
	report.AddArm("BP", bpDists)
	report.AddArm("CP", cpDists)
	report.Render(os.Stdout)
	return nil
}

// optimalBoxChainPolicy は手計算による最適方策を返す。前進を最優先し、
// 前進が無ければ後退を選んで、分岐 (Detour) は避ける。
func optimalBoxChainPolicy(logic mdp.Logic[chainPair, boxChainAction]) map[chainPair]boxChainAction {
	isAction := func(a boxChainAction, want chain.Action) bool {
		if l, ok := a.LeftAction(); ok {
			return l == want
		}
		r, _ := a.RightAction()
		return r == want
	}

	policy := map[chainPair]boxChainAction{}
	for _, s := range logic.AllStates() {
		actions := logic.ActionsAt(s)
		if len(actions) == 0 {
			continue
		}

		chosen := actions[0]
		found := false
		for _, a := range actions {
			if isAction(a, chain.Next) {
				chosen = a
				found = true
				break
			}
		}
		if !found {
			for _, a := range actions {
				if isAction(a, chain.Prev) {
					chosen = a
					break
				}
			}
		}
		policy[s] = chosen
	}
	return policy
}

func optimalCartesianChainPolicy(logic mdp.Logic[chainPair, pairChainAction]) map[chainPair]pairChainAction {
	target := measure.NewPair(chain.Next, chain.Next)
	policy := map[chainPair]pairChainAction{}
	for _, s := range logic.AllStates() {
		actions := logic.ActionsAt(s)
		if len(actions) == 0 {
			continue
		}

		chosen := actions[0]
		for _, a := range actions {
			if a == target {
				chosen = a
				break
			}
		}
		policy[s] = chosen
	}
	return policy
}
