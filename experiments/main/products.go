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

type pathPair = measure.Pair[path.State, path.State]
type boxPathAction = products.BoxAction[path.Action, path.Action]
type pairPathAction = measure.Pair[path.Action, path.Action]

func newProductsCmd() *cobra.Command {
	var runs, parallelism int
	var seed uint64
	var chartPath string

	cmd := &cobra.Command{
		Use:   "products",
		Short: "2次元の一本道でBox合成とCartesian合成を比較する",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Println("2次元の一本道: Box合成 vs Cartesian合成")

			configs := []struct {
				size     int
				episodes int
			}{
				{size: 4, episodes: 1500},
				{size: 6, episodes: 2000},
			}

			for _, c := range configs {
				if err := runProductsExperiment(c.size, c.episodes, runs, parallelism, seed); err != nil {
					return err
				}
			}

			if chartPath != "" {
				return writeProductsChart(chartPath, 4, runs, parallelism, seed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&runs, "runs", envInt("RAVEN_NUM_RUNS", 10), "試行回数")
	cmd.Flags().IntVar(&parallelism, "parallel", envInt("RAVEN_PARALLEL", 1), "並列ワーカー数")
	cmd.Flags().Uint64Var(&seed, "seed", envUint64("RAVEN_SEED", 0), "乱数シード (0で毎回変わる)")
	cmd.Flags().StringVar(&chartPath, "chart", "", "距離曲線を書き出すHTMLファイルのパス")
	return cmd
}

func runProductsExperiment(size, episodes, runs, parallelism int, seed uint64) error {
	bp := products.Box(path.New(size), path.New(size))
	cp := products.Cartesian(path.New(size), path.New(size))

	bpStats := experiments.AnalyzeActionSpace(bp)
	cpStats := experiments.AnalyzeActionSpace(cp)
	fmt.Printf("  状態数: BP=%d, CP=%d\n", bpStats.NumStates, cpStats.NumStates)
	fmt.Printf("  状態あたりの平均行動数: BP=%.1f, CP=%.1f\n", bpStats.AvgActionsPerState, cpStats.AvgActionsPerState)

	config := ql.Config{
		NumEpisodes:     episodes,
		MaxNumSteps:     size * 3,
		LearningRate:    0.1,
		DiscountFactor:  0.9,
		ExplorationRate: 0.1,
	}

	bpTrial := experiments.Trial[pathPair, boxPathAction]{
		Logic:   bp,
		Config:  config,
		Optimal: optimalBoxPathPolicy(bp),
	}
	cpTrial := experiments.Trial[pathPair, pairPathAction]{
		Logic:   cp,
		Config:  config,
		Optimal: optimalCartesianPathPolicy(cp),
	}

	bpDists, err := bpTrial.RunMany(runs, newRngs(parallelism, seed))
	if err != nil {
		return err
	}
	cpDists, err := cpTrial.RunMany(runs, newRngs(parallelism, seed))
	if err != nil {
		return err
	}

	report := experiments.NewReport(fmt.Sprintf("%dx%d 一本道 (%dエピソード)", size, size, episodes))
	report.AddArm("BP", bpDists)
	report.AddArm("CP", cpDists)
	report.Render(os.Stdout)
	return nil
}

// writeProductsChart はエピソード数を変えながら両合成を学習させ、
// 方策距離の推移をHTMLチャートに書き出す。
func writeProductsChart(htmlPath string, size, runs, parallelism int, seed uint64) error {
	log.Println("距離曲線を計測しています...")

	bp := products.Box(path.New(size), path.New(size))
	cp := products.Cartesian(path.New(size), path.New(size))
	optBP := optimalBoxPathPolicy(bp)
	optCP := optimalCartesianPathPolicy(cp)

	episodesGrid := []int{250, 500, 750, 1000, 1250, 1500}
	bpMeans := make([]float64, len(episodesGrid))
	cpMeans := make([]float64, len(episodesGrid))

	for i, episodes := range episodesGrid {
		config := ql.Config{
			NumEpisodes:     episodes,
			MaxNumSteps:     size * 3,
			LearningRate:    0.1,
			DiscountFactor:  0.9,
			ExplorationRate: 0.1,
		}

		bpTrial := experiments.Trial[pathPair, boxPathAction]{Logic: bp, Config: config, Optimal: optBP}
		cpTrial := experiments.Trial[pathPair, pairPathAction]{Logic: cp, Config: config, Optimal: optCP}

		bpDists, err := bpTrial.RunMany(runs, newRngs(parallelism, seed))
		if err != nil {
			return err
		}
		cpDists, err := cpTrial.RunMany(runs, newRngs(parallelism, seed))
		if err != nil {
			return err
		}

		bpMeans[i] = experiments.Summarize(bpDists).Mean
		cpMeans[i] = experiments.Summarize(cpDists).Mean
	}

	curves := []experiments.Curve{
		{Label: "BP", Episodes: episodesGrid, Distances: bpMeans},
		{Label: "CP", Episodes: episodesGrid, Distances: cpMeans},
	}

	title := fmt.Sprintf("%dx%d 一本道の方策距離", size, size)
	if err := experiments.WriteDistanceChart(title, htmlPath, curves); err != nil {
		return err
	}
	log.Printf("チャートを書き出しました: %s", htmlPath)
	return nil
}

// isAdvance は、どちらかの成分を前進させる行動かどうかを返す。
func isAdvance(a boxPathAction) bool {
	if l, ok := a.LeftAction(); ok {
		return l == path.Next
	}
	r, _ := a.RightAction()
	return r == path.Next
}

// optimalBoxPathPolicy は手計算による最適方策を返す。一本道では
// どちらかの成分を前進させ続けるのが常に最適になる。
func optimalBoxPathPolicy(logic mdp.Logic[pathPair, boxPathAction]) map[pathPair]boxPathAction {
	policy := map[pathPair]boxPathAction{}
	for _, s := range logic.AllStates() {
		actions := logic.ActionsAt(s)
		if len(actions) == 0 {
			continue
		}

		chosen := actions[0]
		for _, a := range actions {
			if isAdvance(a) {
				chosen = a
				break
			}
		}
		policy[s] = chosen
	}
	return policy
}

func optimalCartesianPathPolicy(logic mdp.Logic[pathPair, pairPathAction]) map[pathPair]pairPathAction {
	target := measure.NewPair(path.Next, path.Next)
	policy := map[pathPair]pairPathAction{}
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
