package chain_test

import (
	"math"
	"slices"
	"testing"

	"github.com/sw965/raven/world/chain"
)

func TestActionsAt(t *testing.T) {
	logic := chain.New(6, []int{2, 4})

	tests := []struct {
		name  string
		state chain.State
		want  []chain.Action
	}{
		{
			name:  "通常状態",
			state: 1,
			want:  []chain.Action{chain.Prev, chain.Next},
		},
		{
			name:  "分岐状態",
			state: 2,
			want:  []chain.Action{chain.Prev, chain.Next, chain.Detour},
		},
		{
			name:  "分岐状態_2つ目",
			state: 4,
			want:  []chain.Action{chain.Prev, chain.Next, chain.Detour},
		},
		{
			name:  "終端状態",
			state: 5,
			want:  []chain.Action{chain.Prev, chain.Next},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Helper()
			got := logic.ActionsAt(tc.state)
			if !slices.Equal(got, tc.want) {
				t.Errorf("want: %v, got: %v", tc.want, got)
			}
		})
	}
}

func TestTransition(t *testing.T) {
	logic := chain.New(6, []int{2, 4})
	eps := 1e-12

	tests := []struct {
		name       string
		state      chain.State
		action     chain.Action
		wantNext   chain.State
		wantReward float64
	}{
		{
			name:       "正常_前進",
			state:      1,
			action:     chain.Next,
			wantNext:   2,
			wantReward: chain.NextReward,
		},
		{
			name:       "正常_後退",
			state:      3,
			action:     chain.Prev,
			wantNext:   2,
			wantReward: chain.PrevReward,
		},
		{
			name:       "正常_分岐で出発点に戻る",
			state:      4,
			action:     chain.Detour,
			wantNext:   0,
			wantReward: chain.DetourReward,
		},
		{
			name:       "正常_終端への前進でボーナス",
			state:      4,
			action:     chain.Next,
			wantNext:   5,
			wantReward: chain.NextReward + chain.EndReward,
		},
		{
			name:       "準正常_終端からの前進は打ち止め",
			state:      5,
			action:     chain.Next,
			wantNext:   5,
			wantReward: chain.NextReward + chain.EndReward,
		},
		{
			name:       "準正常_出発点からの後退は打ち止め",
			state:      0,
			action:     chain.Prev,
			wantNext:   0,
			wantReward: chain.PrevReward,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Helper()
			m, reward, err := logic.StochasticTransition(tc.state, tc.action)
			if err != nil {
				t.Fatalf("予期せぬエラーが発生した: %v", err)
			}

			if m.Prob(tc.wantNext) != 1.0 {
				t.Errorf("want: 1.0, got: %v, next: %d", m.Prob(tc.wantNext), tc.wantNext)
			}

			if math.Abs(reward-tc.wantReward) > eps {
				t.Errorf("want: %v, got: %v", tc.wantReward, reward)
			}
		})
	}
}

func TestIsFinal(t *testing.T) {
	logic := chain.New(6, []int{2, 4})
	if logic.IsFinalState(4) {
		t.Errorf("want: false, got: true")
	}
	if !logic.IsFinalState(5) {
		t.Errorf("want: true, got: false")
	}
}
