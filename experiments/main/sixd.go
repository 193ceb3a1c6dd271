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

// 6次元は3次元と同じ要領で、一本道を左結合で6段まで入れ子にして作る。
type path4State = measure.Pair[path3State, path.State]
type path5State = measure.Pair[path4State, path.State]
type path6State = measure.Pair[path5State, path.State]

type box4Action = products.BoxAction[box3Action, path.Action]
type box5Action = products.BoxAction[box4Action, path.Action]
type box6Action = products.BoxAction[box5Action, path.Action]

type pair4Action = measure.Pair[pair3Action, path.Action]
type pair5Action = measure.Pair[pair4Action, path.Action]
type pair6Action = measure.Pair[pair5Action, path.Action]

func newSixdCmd() *cobra.Command {
	var runs, parallelism, episodes, size int
	var seed uint64

	cmd := &cobra.Command{
		Use:   "sixd",
		Short: "6次元に入れ子にした一本道でBox合成とCartesian合成を比較する",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Println("6次元の一本道: Box合成 vs Cartesian合成")

			bp2 := products.Box(path.New(size), path.New(size))
			bp3 := products.Box(bp2, path.New(size))
			bp4 := products.Box(bp3, path.New(size))
			bp5 := products.Box(bp4, path.New(size))
			bp := products.Box(bp5, path.New(size))

			cp2 := products.Cartesian(path.New(size), path.New(size))
			cp3 := products.Cartesian(cp2, path.New(size))
			cp4 := products.Cartesian(cp3, path.New(size))
			cp5 := products.Cartesian(cp4, path.New(size))
			cp := products.Cartesian(cp5, path.New(size))

			bpStats := experiments.AnalyzeActionSpace(bp)
			cpStats := experiments.AnalyzeActionSpace(cp)
			fmt.Printf("  状態数: BP=%d, CP=%d\n", bpStats.NumStates, cpStats.NumStates)
			fmt.Printf("  状態あたりの平均行動数: BP=%.1f, CP=%.1f\n", bpStats.AvgActionsPerState, cpStats.AvgActionsPerState)

			config := ql.Config{
				NumEpisodes:     episodes,
				MaxNumSteps:     size * 7,
				LearningRate:    0.1,
				DiscountFactor:  0.9,
				ExplorationRate: 0.1,
			}

			bpTrial := experiments.Trial[path6State, box6Action]{
				Logic:   bp,
				Config:  config,
				Optimal: optimalBox6Policy(bp),
			}
			cpTrial := experiments.Trial[path6State, pair6Action]{
				Logic:   cp,
				Config:  config,
				Optimal: optimalCartesian6Policy(cp),
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

			report := experiments.NewReport(fmt.Sprintf("6次元一本道 サイズ%d (%dエピソード)", size, episodes))
			report.AddArm("BP", bpDists)
			report.AddArm("CP", cpDists)
			report.Render(os.Stdout)
			return nil
		},
	}

	cmd.Flags().IntVar(&runs, "runs", envInt("RAVEN_NUM_RUNS", 10), "試行回数")
	cmd.Flags().IntVar(&parallelism, "parallel", envInt("RAVEN_PARALLEL", 1), "並列ワーカー数")
	cmd.Flags().IntVar(&episodes, "episodes", envInt("RAVEN_NUM_EPISODES", 3000), "エピソード数")
	cmd.Flags().IntVar(&size, "size", 3, "一本道の長さ")
	cmd.Flags().Uint64Var(&seed, "seed", envUint64("RAVEN_SEED", 0), "乱数シード (0で毎回変わる)")
	return cmd
}

func isAdvance4(a box4Action) bool {
	if inner, ok := a.LeftAction(); ok {
		return isAdvance3(inner)
	}
	r, _ := a.RightAction()
	return r == path.Next
}

func isAdvance5(a box5Action) bool {
	if inner, ok := a.LeftAction(); ok {
		return isAdvance4(inner)
	}
	r, _ := a.RightAction()
	return r == path.Next
}

// isAdvance6 は、6成分のどれかを前進させる行動かどうかを返す。
func isAdvance6(a box6Action) bool {
	if inner, ok := a.LeftAction(); ok {
		return isAdvance5(inner)
	}
	r, _ := a.RightAction()
	return r == path.Next
}

func optimalBox6Policy(logic mdp.Logic[path6State, box6Action]) map[path6State]box6Action {
	policy := map[path6State]box6Action{}
	for _, s := range logic.AllStates() {
		actions := logic.ActionsAt(s)
		if len(actions) == 0 {
			continue
		}

		chosen := actions[0]
		for _, a := range actions {
			if isAdvance6(a) {
				chosen = a
				break
			}
		}
		policy[s] = chosen
	}
	return policy
}

func optimalCartesian6Policy(logic mdp.Logic[path6State, pair6Action]) map[path6State]pair6Action {
	pair2 := measure.NewPair(path.Next, path.Next)
	pair3 := measure.NewPair(pair2, path.Next)
	pair4 := measure.NewPair(pair3, path.Next)
	pair5 := measure.NewPair(pair4, path.Next)
	target := measure.NewPair(pair5, path.Next)

	policy := map[path6State]pair6Action{}
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
