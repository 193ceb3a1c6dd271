// Package experiments provides the measurement tools used to compare
// learning across decision processes: greedy policy extraction, policy
// distance, action-space statistics, repeated trials with summary
// statistics, and report/chart rendering.
package experiments

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/google/uuid"
	"github.com/logrusorgru/aurora"
	"github.com/sw965/omw/parallel"
	"github.com/sw965/raven/mdp"
	"github.com/sw965/raven/measure"
	"github.com/sw965/raven/ql"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrNotComparable = errors.New("Reportエラー: 比率の計算には2つの結果が必要です")
	ErrNoCurves      = errors.New("チャートエラー: 曲線が1つもありません")
	ErrInvalidEval   = errors.New("評価エラー: 引数が不正です")
)

// GreedyPolicy extracts the deterministic greedy policy from a learned
// table: per state, the first best action in ActionsAt order. States
// without actions are omitted.
func GreedyPolicy[S, A comparable](logic mdp.Logic[S, A], av ql.ActionValue[S, A]) map[S]A {
	policy := map[S]A{}
	for _, s := range logic.AllStates() {
		actions := logic.ActionsAt(s)
		if len(actions) == 0 {
			continue
		}

		best := actions[0]
		bestQ := av.Get(s, best)
		for _, a := range actions[1:] {
			q := av.Get(s, a)
			if q > bestQ {
				best = a
				bestQ = q
			}
		}
		policy[s] = best
	}
	return policy
}

// PolicyDistance returns the fraction of optimal-policy states whose
// learned action differs. States absent from learned are ignored; if
// nothing overlaps the distance is 1.
func PolicyDistance[S, A comparable](learned, optimal map[S]A) float64 {
	var total, count float64
	for s, opt := range optimal {
		l, ok := learned[s]
		if !ok {
			continue
		}
		count++
		if l != opt {
			total++
		}
	}

	if count == 0 {
		return 1.0
	}
	return total / count
}

type ActionSpaceStats struct {
	NumStates          int
	AvgActionsPerState float64
}

// AnalyzeActionSpace measures how large a process is from the
// learner's point of view.
func AnalyzeActionSpace[S, A comparable](logic mdp.Logic[S, A]) ActionSpaceStats {
	total := 0
	for _, s := range logic.AllStates() {
		total += len(logic.ActionsAt(s))
	}

	n := len(logic.States)
	avg := 0.0
	if n > 0 {
		avg = float64(total) / float64(n)
	}
	return ActionSpaceStats{NumStates: n, AvgActionsPerState: avg}
}

// Trial is one learning experiment: train on Logic with Config, then
// measure the distance between the learned greedy policy and Optimal.
type Trial[S, A comparable] struct {
	Logic   mdp.Logic[S, A]
	Config  ql.Config
	Optimal map[S]A
}

func (t Trial[S, A]) Run(rng *rand.Rand) (float64, error) {
	av, err := ql.QLearning(t.Logic, t.Config, rng)
	if err != nil {
		return 0.0, err
	}
	learned := GreedyPolicy(t.Logic, av)
	return PolicyDistance(learned, t.Optimal), nil
}

// RunMany runs n independent trials with len(rngs) workers. Each
// worker owns one rng, so runs with the same seeds reproduce.
func (t Trial[S, A]) RunMany(n int, rngs []*rand.Rand) ([]float64, error) {
	p := len(rngs)
	distances := make([]float64, n)
	err := parallel.For(n, p, func(workerId, idx int) error {
		d, err := t.Run(rngs[workerId])
		if err != nil {
			return err
		}
		distances[idx] = d
		return nil
	})
	return distances, err
}

// PolicyFunc returns the action a deterministic policy executes in a
// state. The second value is false when the policy has no action
// there, which ends the evaluation episode.
type PolicyFunc[S, A comparable] func(S) (A, bool)

// AverageReturnFunc rolls out a policy function and returns the mean
// episodic reward sum. Zero-shot policies composed from component
// policies are evaluated this way: they cover states the composed
// universe does not enumerate.
func AverageReturnFunc[S, A comparable](logic mdp.Logic[S, A], policy PolicyFunc[S, A], episodes, maxSteps int, rng *rand.Rand) (float64, error) {
	if episodes < 1 {
		return 0.0, fmt.Errorf("%w: episodes = %d", ErrInvalidEval, episodes)
	}

	total := 0.0
	for ep := 0; ep < episodes; ep++ {
		state, err := logic.RandomState(rng)
		if err != nil {
			return 0.0, err
		}

		episodeReturn := 0.0
		for step := 0; step < maxSteps; step++ {
			action, ok := policy(state)
			if !ok {
				break
			}

			m, reward, err := logic.StochasticTransition(state, action)
			if err != nil {
				return 0.0, err
			}
			episodeReturn += reward

			next, err := m.Sample(rng)
			if err != nil {
				if errors.Is(err, measure.ErrEmptyMeasure) {
					next = state
				} else {
					return 0.0, err
				}
			}

			state = next
			if logic.IsFinalState(state) {
				break
			}
		}
		total += episodeReturn
	}
	return total / float64(episodes), nil
}

// AverageReturn evaluates a policy map. States missing from the map
// fall back to their first legal action; dead ends end the episode.
func AverageReturn[S, A comparable](logic mdp.Logic[S, A], policy map[S]A, episodes, maxSteps int, rng *rand.Rand) (float64, error) {
	f := func(s S) (A, bool) {
		if a, ok := policy[s]; ok {
			return a, true
		}
		actions := logic.ActionsAt(s)
		if len(actions) == 0 {
			var zero A
			return zero, false
		}
		return actions[0], true
	}
	return AverageReturnFunc(logic, f, episodes, maxSteps, rng)
}

type Summary struct {
	Mean   float64
	StdDev float64
}

func Summarize(xs []float64) Summary {
	s := Summary{Mean: stat.Mean(xs, nil)}
	if len(xs) >= 2 {
		s.StdDev = stat.StdDev(xs, nil)
	}
	return s
}

// Arm is one labeled set of trial results inside a Report.
type Arm struct {
	Label     string
	Distances []float64
	Summary   Summary
}

// Report collects the results of one comparison run.
type Report struct {
	RunID string
	Title string
	Arms  []Arm
}

func NewReport(title string) Report {
	return Report{
		RunID: uuid.NewString(),
		Title: title,
	}
}

func (r *Report) AddArm(label string, distances []float64) {
	r.Arms = append(r.Arms, Arm{
		Label:     label,
		Distances: distances,
		Summary:   Summarize(distances),
	})
}

// Ratio compares two arms: second mean over first mean.
func (r Report) Ratio() (float64, error) {
	if len(r.Arms) != 2 {
		return 0.0, fmt.Errorf("%w: %d", ErrNotComparable, len(r.Arms))
	}
	return r.Arms[1].Summary.Mean / r.Arms[0].Summary.Mean, nil
}

func (r Report) Render(w io.Writer) {
	fmt.Fprintf(w, "%s\n", aurora.Bold(r.Title))
	fmt.Fprintf(w, "run id: %s\n", r.RunID)
	for _, arm := range r.Arms {
		fmt.Fprintf(w, "  %s 距離: %.4f (±%.4f, %d試行)\n",
			aurora.Cyan(arm.Label), arm.Summary.Mean, arm.Summary.StdDev, len(arm.Distances))
	}

	if ratio, err := r.Ratio(); err == nil {
		fmt.Fprintf(w, "  %s %.2fx\n",
			aurora.Yellow(fmt.Sprintf("比率 (%s/%s):", r.Arms[1].Label, r.Arms[0].Label)), ratio)
	}
}

// Curve is one line on the distance chart: policy distance as a
// function of the number of training episodes.
type Curve struct {
	Label     string
	Episodes  []int
	Distances []float64
}

// WriteDistanceChart renders curves into a standalone HTML file.
func WriteDistanceChart(title, htmlPath string, curves []Curve) error {
	if len(curves) == 0 {
		return ErrNoCurves
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: title,
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
	)

	xs := make([]string, len(curves[0].Episodes))
	for i, ep := range curves[0].Episodes {
		xs[i] = strconv.Itoa(ep)
	}
	line.SetXAxis(xs)

	for _, c := range curves {
		items := make([]opts.LineData, 0, len(c.Distances))
		for _, d := range c.Distances {
			items = append(items, opts.LineData{Value: d})
		}
		line.AddSeries(c.Label, items)
	}

	page := components.NewPage()
	page.AddCharts(line)

	f, err := os.Create(htmlPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}
