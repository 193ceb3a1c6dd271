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
	"github.com/sw965/raven/world/path"
)

// 3次元は2次元の合成にもう1つの成分を入れ子にして作る。
type path3State = measure.Pair[pathPair, path.State]
type box3Action = products.BoxAction[boxPathAction, path.Action]
type pair3Action = measure.Pair[pairPathAction, path.Action]

func newThreedCmd() *cobra.Command {
	var runs, parallelism, episodes, size int
	var seed uint64

	cmd := &cobra.Command{
		Use:   "threed",
		Short: "3次元に入れ子にした一本道でBox合成とCartesian合成を比較する",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Println("3次元の一本道: Box合成 vs Cartesian合成")

			bp := products.Box(products.Box(path.New(size), path.New(size)), path.New(size))
			cp := products.Cartesian(products.Cartesian(path.New(size), path.New(size)), path.New(size))

			bpStats := experiments.AnalyzeActionSpace(bp)
			cpStats := experiments.AnalyzeActionSpace(cp)
			fmt.Printf("  状態数: BP=%d, CP=%d\n", bpStats.NumStates, cpStats.NumStates)
			fmt.Printf("  状態あたりの平均行動数: BP=%.1f, CP=%.1f\n", bpStats.AvgActionsPerState, cpStats.AvgActionsPerState)

			config := ql.Config{
				NumEpisodes:     episodes,
				MaxNumSteps:     size * 4,
				LearningRate:    0.1,
				DiscountFactor:  0.9,
				ExplorationRate: 0.1,
			}

			bpTrial := experiments.Trial[path3State, box3Action]{
				Logic:   bp,
				Config:  config,
				Optimal: optimalBox3Policy(bp),
			}
			cpTrial := experiments.Trial[path3State, pair3Action]{
				Logic:   cp,
				Config:  config,
				Optimal: optimalCartesian3Policy(cp),
			}

			log.Printf("%d試行 (各%dエピソード) を実行しています...", runs, episodes)

			bpDists, err := bpTrial.RunMany(runs, newRngs(parallelism, seed))
			if err != nil {
				return err
			}
			cpDists, err := cpTrial.RunMany(runs, newRngs(parallelism, seed))
			if err != nil {
				return err
			}

			report := experiments.NewReport(fmt.Sprintf("3次元一本道 サイズ%d (%dエピソード)", size, episodes))
			report.AddArm("BP", bpDists)
			report.AddArm("CP", cpDists)
			report.Render(os.Stdout)

			fmt.Println()
			fmt.Println("3次元でもCPの同時行動空間はBPより大きいままになる。")
			return nil
		},
	}

	cmd.Flags().IntVar(&runs, "runs", envInt("RAVEN_NUM_RUNS", 10), "試行回数")
	cmd.Flags().IntVar(&parallelism, "parallel", envInt("RAVEN_PARALLEL", 1), "並列ワーカー数")
	cmd.Flags().IntVar(&episodes, "episodes", envInt("RAVEN_NUM_EPISODES", 1500), "エピソード数")
	cmd.Flags().IntVar(&size, "size", 4, "一本道の長さ")
	cmd.Flags().Uint64Var(&seed, "seed", envUint64("RAVEN_SEED", 0), "乱数シード (0で毎回変わる)")
	return cmd
}

// isAdvance3 は、3成分のどれかを前進させる行動かどうかを返す。
func isAdvance3(a box3Action) bool {
	if inner, ok := a.LeftAction(); ok {
		return isAdvance(inner)
	}
	r, _ := a.RightAction()
	return r == path.Next
}

func optimalBox3Policy(logic mdp.Logic[path3State, box3Action]) map[path3State]box3Action {
	policy := map[path3State]box3Action{}
	for _, s := range logic.AllStates() {
		actions := logic.ActionsAt(s)
		if len(actions) == 0 {
			continue
		}

		chosen := actions[0]
		for _, a := range actions {
			if isAdvance3(a) {
				chosen = a
				break
			}
		}
		policy[s] = chosen
	}
	return policy
}

func optimalCartesian3Policy(logic mdp.Logic[path3State, pair3Action]) map[path3State]pair3Action {
	target := measure.NewPair(measure.NewPair(path.Next, path.Next), path.Next)
	policy := map[path3State]pair3Action{}
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
