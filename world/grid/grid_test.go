package grid_test

import (
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/sw965/raven/world/grid"
)

func TestConfigValidate(t *testing.T) {
	base := grid.Config{
		Rows:       3,
		Cols:       3,
		Walls:      []grid.Cell{{Row: 1, Col: 1}},
		Goals:      []grid.Cell{{Row: 0, Col: 2}},
		Terminals:  []grid.Cell{{Row: 0, Col: 2}},
		StepReward: -1.0,
		GoalBonus:  40.0,
		SlipProb:   0.1,
	}

	tests := []struct {
		name           string
		mutate         func(*grid.Config)
		wantErrMsgSubs []string
	}{
		{
			name:   "正常",
			mutate: func(c *grid.Config) {},
		},
		{
			name: "正常_滑りなし",
			mutate: func(c *grid.Config) {
				c.SlipProb = 0.0
			},
		},
		{
			name: "異常_行数が0",
			mutate: func(c *grid.Config) {
				c.Rows = 0
			},
			wantErrMsgSubs: []string{"Rows"},
		},
		{
			name: "異常_滑り確率が範囲外",
			mutate: func(c *grid.Config) {
				c.SlipProb = 1.5
			},
			wantErrMsgSubs: []string{"SlipProb"},
		},
		{
			name: "異常_壁が盤面の外",
			mutate: func(c *grid.Config) {
				c.Walls = []grid.Cell{{Row: 5, Col: 0}}
			},
			wantErrMsgSubs: []string{"壁"},
		},
		{
			name: "異常_ゴールが壁と重なる",
			mutate: func(c *grid.Config) {
				c.Goals = []grid.Cell{{Row: 1, Col: 1}}
			},
			wantErrMsgSubs: []string{"ゴール", "壁"},
		},
		{
			name: "異常_終端が盤面の外",
			mutate: func(c *grid.Config) {
				c.Terminals = []grid.Cell{{Row: 0, Col: 9}}
			},
			wantErrMsgSubs: []string{"終端"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Helper()
			config := base
			tc.mutate(&config)
			err := config.Validate()
			if len(tc.wantErrMsgSubs) == 0 {
				if err != nil {
					t.Errorf("予期せぬエラーが発生した: %v", err)
				}
				return
			}

			if err == nil {
				t.Fatalf("エラーを期待したが、nilが返された")
			}

			errMsg := err.Error()
			for _, sub := range tc.wantErrMsgSubs {
				if !strings.Contains(errMsg, sub) {
					t.Errorf("errMsg = %s, sub = %s", errMsg, sub)
				}
			}
		})
	}
}

func TestStatesExcludeWalls(t *testing.T) {
	logic, err := grid.New(grid.Config{
		Rows:  3,
		Cols:  3,
		Walls: []grid.Cell{{Row: 1, Col: 1}},
	})
	if err != nil {
		t.Fatalf("予期せぬエラーが発生した: %v", err)
	}

	if len(logic.States) != 8 {
		t.Errorf("want: 8, got: %d", len(logic.States))
	}

	if slices.Contains(logic.States, grid.Cell{Row: 1, Col: 1}) {
		t.Errorf("壁が状態空間に含まれている")
	}
}

func TestDeterministicTransition(t *testing.T) {
	logic, err := grid.New(grid.Config{
		Rows:       3,
		Cols:       3,
		Walls:      []grid.Cell{{Row: 1, Col: 1}},
		Goals:      []grid.Cell{{Row: 0, Col: 2}},
		Terminals:  []grid.Cell{{Row: 0, Col: 2}},
		StepReward: -1.0,
		GoalBonus:  40.0,
	})
	if err != nil {
		t.Fatalf("予期せぬエラーが発生した: %v", err)
	}

	eps := 1e-12

	tests := []struct {
		name       string
		cell       grid.Cell
		action     grid.Action
		wantNext   grid.Cell
		wantReward float64
	}{
		{
			name:       "正常_移動",
			cell:       grid.Cell{Row: 2, Col: 0},
			action:     grid.Up,
			wantNext:   grid.Cell{Row: 1, Col: 0},
			wantReward: -1.0,
		},
		{
			name:       "正常_ゴールへの移動でボーナス",
			cell:       grid.Cell{Row: 0, Col: 1},
			action:     grid.Right,
			wantNext:   grid.Cell{Row: 0, Col: 2},
			wantReward: 39.0,
		},
		{
			name:       "準正常_盤面の端で打ち止め",
			cell:       grid.Cell{Row: 0, Col: 0},
			action:     grid.Up,
			wantNext:   grid.Cell{Row: 0, Col: 0},
			wantReward: -1.0,
		},
		{
			name:       "準正常_壁で打ち止め",
			cell:       grid.Cell{Row: 1, Col: 0},
			action:     grid.Right,
			wantNext:   grid.Cell{Row: 1, Col: 0},
			wantReward: -1.0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Helper()
			m, reward, err := logic.StochasticTransition(tc.cell, tc.action)
			if err != nil {
				t.Fatalf("予期せぬエラーが発生した: %v", err)
			}

			if m.Prob(tc.wantNext) != 1.0 {
				t.Errorf("want: 1.0, got: %v, next: %v", m.Prob(tc.wantNext), tc.wantNext)
			}

			if math.Abs(reward-tc.wantReward) > eps {
				t.Errorf("want: %v, got: %v", tc.wantReward, reward)
			}
		})
	}
}

func TestGoalSeparateFromFinal(t *testing.T) {
	// 終端を設定しない盤面では、ゴールに到達しても過程は終わらない。
	logic, err := grid.New(grid.Config{
		Rows:      3,
		Cols:      3,
		Goals:     []grid.Cell{{Row: 0, Col: 2}},
		GoalBonus: 10.0,
	})
	if err != nil {
		t.Fatalf("予期せぬエラーが発生した: %v", err)
	}

	goal := grid.Cell{Row: 0, Col: 2}
	if !logic.IsGoal(goal) {
		t.Errorf("want: true, got: false")
	}
	if logic.IsFinalState(goal) {
		t.Errorf("want: false, got: true")
	}
}

func TestSlipTransition(t *testing.T) {
	logic, err := grid.New(grid.Config{
		Rows:       3,
		Cols:       3,
		StepReward: -1.0,
		SlipProb:   0.2,
	})
	if err != nil {
		t.Fatalf("予期せぬエラーが発生した: %v", err)
	}

	m, _, err := logic.StochasticTransition(grid.Cell{Row: 1, Col: 1}, grid.Up)
	if err != nil {
		t.Fatalf("予期せぬエラーが発生した: %v", err)
	}

	if m.Len() != 4 {
		t.Fatalf("want: 4, got: %d", m.Len())
	}

	eps := 1e-12
	wants := map[grid.Cell]float64{
		{Row: 0, Col: 1}: 0.85, // 意図した方向 + 滑り
		{Row: 2, Col: 1}: 0.05,
		{Row: 1, Col: 0}: 0.05,
		{Row: 1, Col: 2}: 0.05,
	}

	for cell, want := range wants {
		got := m.Prob(cell).Value()
		if math.Abs(got-want) > eps {
			t.Errorf("want: %v, got: %v, cell: %v", want, got, cell)
		}
	}
}

func TestSlipTransitionSupportOrderIsFixed(t *testing.T) {
	// 滑りのある遷移測度はステップの度に作り直される。台の順序が
	// 固定されていないと、同一シードでも学習結果が再現しなくなる。
	logic, err := grid.New(grid.Config{
		Rows:       3,
		Cols:       3,
		StepReward: -1.0,
		SlipProb:   0.2,
	})
	if err != nil {
		t.Fatalf("予期せぬエラーが発生した: %v", err)
	}

	want := []grid.Cell{
		{Row: 0, Col: 1}, // 意図した方向が先頭
		{Row: 2, Col: 1},
		{Row: 1, Col: 0},
		{Row: 1, Col: 2},
	}

	for i := 0; i < 50; i++ {
		m, _, err := logic.StochasticTransition(grid.Cell{Row: 1, Col: 1}, grid.Up)
		if err != nil {
			t.Fatalf("予期せぬエラーが発生した: %v", err)
		}
		if !slices.Equal(m.Support(), want) {
			t.Fatalf("台の順序が一致しない: want: %v, got: %v", want, m.Support())
		}
	}
}

func TestSlipCanGrantGoalBonus(t *testing.T) {
	// 意図した移動先がゴールでなくても、滑りで到達し得るなら
	// ボーナスが付く。
	logic, err := grid.New(grid.Config{
		Rows:       3,
		Cols:       3,
		Goals:      []grid.Cell{{Row: 0, Col: 1}},
		StepReward: -1.0,
		GoalBonus:  40.0,
		SlipProb:   0.2,
	})
	if err != nil {
		t.Fatalf("予期せぬエラーが発生した: %v", err)
	}

	_, reward, err := logic.StochasticTransition(grid.Cell{Row: 1, Col: 1}, grid.Left)
	if err != nil {
		t.Fatalf("予期せぬエラーが発生した: %v", err)
	}

	if reward != 39.0 {
		t.Errorf("want: 39.0, got: %v", reward)
	}
}
