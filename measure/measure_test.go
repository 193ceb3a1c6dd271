package measure_test

import (
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/sw965/raven/measure"
)

func TestNewProbability(t *testing.T) {
	tests := []struct {
		name           string
		v              float64
		want           measure.Probability
		wantErr        bool
		wantErrMsgSubs []string
	}{
		//正常系
		{
			name: "正常_下限",
			v:    0.0,
			want: 0.0,
		},
		{
			name: "正常_上限",
			v:    1.0,
			want: 1.0,
		},
		{
			name: "正常_中間値",
			v:    0.25,
			want: 0.25,
		},
		//異常系
		{
			name:    "異常_負数",
			v:       -0.1,
			wantErr: true,
			wantErrMsgSubs: []string{
				"範囲外",
			},
		},
		{
			name:    "異常_1超過",
			v:       1.000001,
			wantErr: true,
			wantErrMsgSubs: []string{
				"範囲外",
			},
		},
		{
			name:    "異常_NaN",
			v:       math.NaN(),
			wantErr: true,
			wantErrMsgSubs: []string{
				"範囲外",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Helper()
			got, err := measure.NewProbability(tc.v)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("エラーを期待したが、nilが返された")
				}
				errMsg := err.Error()
				for _, sub := range tc.wantErrMsgSubs {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("errMsg = %s, sub = %s", errMsg, sub)
					}
				}
				return
			}

			if err != nil {
				t.Fatalf("予期せぬエラーが発生した: %v", err)
			}

			if got != tc.want {
				t.Errorf("want: %v, got: %v", tc.want, got)
			}
		})
	}
}

func TestProbabilityComplement(t *testing.T) {
	p := measure.Probability(0.25)
	got := p.Complement()
	if got != 0.75 {
		t.Errorf("want: 0.75, got: %v", got)
	}
}

func TestProbabilityAndOr(t *testing.T) {
	eps := 1e-12
	p := measure.Probability(0.5)
	q := measure.Probability(0.2)

	and := p.And(q).Value()
	if math.Abs(and-0.1) > eps {
		t.Errorf("want: 0.1, got: %v", and)
	}

	// 0.5 + 0.2 - 0.1 = 0.6
	or := p.Or(q).Value()
	if math.Abs(or-0.6) > eps {
		t.Errorf("want: 0.6, got: %v", or)
	}
}

func TestDeterministic(t *testing.T) {
	m := measure.Deterministic("晴れ")
	if m.Len() != 1 {
		t.Fatalf("want: 1, got: %d", m.Len())
	}

	if m.Prob("晴れ") != 1.0 {
		t.Errorf("want: 1.0, got: %v", m.Prob("晴れ"))
	}

	if m.Prob("雨") != 0.0 {
		t.Errorf("want: 0.0, got: %v", m.Prob("雨"))
	}

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 10; i++ {
		v, err := m.Sample(rng)
		if err != nil {
			t.Fatalf("予期せぬエラーが発生した: %v", err)
		}
		if v != "晴れ" {
			t.Errorf("want: 晴れ, got: %s", v)
		}
	}
}

func TestFromDistribution(t *testing.T) {
	tests := []struct {
		name           string
		dist           map[string]measure.Probability
		wantErr        bool
		wantErrMsgSubs []string
	}{
		//正常系
		{
			name: "正常_合計1",
			dist: map[string]measure.Probability{
				"晴れ": 0.5,
				"曇り": 0.3,
				"雨":  0.2,
			},
		},
		{
			name: "正常_許容誤差内",
			dist: map[string]measure.Probability{
				"表": 0.5,
				"裏": 0.5 + 5e-11,
			},
		},
		{
			name: "正常_単一要素",
			dist: map[string]measure.Probability{
				"固定": 1.0,
			},
		},
		//異常系
		{
			name: "異常_合計が1未満",
			dist: map[string]measure.Probability{
				"表": 0.5,
				"裏": 0.3,
			},
			wantErr: true,
			wantErrMsgSubs: []string{
				"合計",
			},
		},
		{
			name: "異常_合計が1超過",
			dist: map[string]measure.Probability{
				"表": 0.6,
				"裏": 0.6,
			},
			wantErr: true,
			wantErrMsgSubs: []string{
				"合計",
			},
		},
		{
			name:    "異常_空の分布",
			dist:    map[string]measure.Probability{},
			wantErr: true,
			wantErrMsgSubs: []string{
				"合計",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Helper()
			got, err := measure.FromDistribution(tc.dist)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("エラーを期待したが、nilが返された")
				}
				errMsg := err.Error()
				for _, sub := range tc.wantErrMsgSubs {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("errMsg = %s, sub = %s", errMsg, sub)
					}
				}
				return
			}

			if err != nil {
				t.Fatalf("予期せぬエラーが発生した: %v", err)
			}

			if got.Len() != len(tc.dist) {
				t.Errorf("want: %d, got: %d", len(tc.dist), got.Len())
			}

			for v, p := range tc.dist {
				if got.Prob(v) != p {
					t.Errorf("want: %v, got: %v, key: %s", p, got.Prob(v), v)
				}
			}
		})
	}
}

func TestFromDistributionSupportIsCanonical(t *testing.T) {
	// mapの反復順は実行の度に変わるが、台は正規化される。同じ分布
	// から作った測度は同じ順序の台を持ち、固定シードでのサンプルが
	// 一致する。
	build := func() measure.Measure[string] {
		m, err := measure.FromDistribution(map[string]measure.Probability{
			"北": 0.1,
			"南": 0.2,
			"東": 0.3,
			"西": 0.4,
		})
		if err != nil {
			t.Fatalf("予期せぬエラーが発生した: %v", err)
		}
		return m
	}

	first := build()
	for i := 0; i < 200; i++ {
		m := build()
		if !slices.Equal(m.Support(), first.Support()) {
			t.Fatalf("台の順序が一致しない: want: %v, got: %v", first.Support(), m.Support())
		}

		v1, err := first.Sample(rand.New(rand.NewPCG(7, 11)))
		if err != nil {
			t.Fatalf("予期せぬエラーが発生した: %v", err)
		}
		v2, err := m.Sample(rand.New(rand.NewPCG(7, 11)))
		if err != nil {
			t.Fatalf("予期せぬエラーが発生した: %v", err)
		}
		if v1 != v2 {
			t.Fatalf("同一シードでサンプルが異なる: %s vs %s", v1, v2)
		}
	}
}

func TestFromOrdered(t *testing.T) {
	support := []string{"雨", "晴れ", "曇り"}
	weights := map[string]measure.Probability{
		"雨":  0.2,
		"晴れ": 0.5,
		"曇り": 0.3,
	}

	m, err := measure.FromOrdered(support, weights)
	if err != nil {
		t.Fatalf("予期せぬエラーが発生した: %v", err)
	}

	// 台は与えた順序のまま保持される。
	if !slices.Equal(m.Support(), support) {
		t.Errorf("want: %v, got: %v", support, m.Support())
	}

	if m.Prob("晴れ") != 0.5 {
		t.Errorf("want: 0.5, got: %v", m.Prob("晴れ"))
	}

	// 台と重みの要素数が食い違う場合は拒否される。
	_, err = measure.FromOrdered([]string{"雨", "晴れ"}, weights)
	if err == nil {
		t.Fatalf("エラーを期待したが、nilが返された")
	}
	if !strings.Contains(err.Error(), "一致しません") {
		t.Errorf("errMsg = %s", err.Error())
	}

	// 重みの合計が1でない場合も拒否される。
	_, err = measure.FromOrdered([]string{"雨", "晴れ", "曇り"}, map[string]measure.Probability{
		"雨":  0.2,
		"晴れ": 0.5,
		"曇り": 0.1,
	})
	if err == nil {
		t.Fatalf("エラーを期待したが、nilが返された")
	}
	if !strings.Contains(err.Error(), "合計") {
		t.Errorf("errMsg = %s", err.Error())
	}
}

func TestSampleEmptyMeasure(t *testing.T) {
	var m measure.Measure[int]
	rng := rand.New(rand.NewPCG(1, 2))
	_, err := m.Sample(rng)
	if err == nil {
		t.Fatalf("エラーを期待したが、nilが返された")
	}
	if !strings.Contains(err.Error(), "空") {
		t.Errorf("errMsg = %s", err.Error())
	}
}

func TestSampleFrequency(t *testing.T) {
	m, err := measure.FromDistribution(map[string]measure.Probability{
		"A": 0.2,
		"B": 0.3,
		"C": 0.5,
	})
	if err != nil {
		t.Fatalf("予期せぬエラーが発生した: %v", err)
	}

	rng := rand.New(rand.NewPCG(1, 2))
	n := 10000
	counts := map[string]int{}
	for i := 0; i < n; i++ {
		v, err := m.Sample(rng)
		if err != nil {
			t.Fatalf("予期せぬエラーが発生した: %v", err)
		}
		counts[v]++
	}

	eps := 0.03
	for v, p := range m.Dist() {
		freq := float64(counts[v]) / float64(n)
		diff := math.Abs(freq - p.Value())
		if diff > eps {
			t.Errorf("want: %v(±%v), got: %v, key: %s", p.Value(), eps, freq, v)
		}
	}
}

func TestProduct(t *testing.T) {
	a, err := measure.FromDistribution(map[string]measure.Probability{
		"表": 0.5,
		"裏": 0.5,
	})
	if err != nil {
		t.Fatalf("予期せぬエラーが発生した: %v", err)
	}

	b, err := measure.FromDistribution(map[int]measure.Probability{
		1: 0.25,
		2: 0.75,
	})
	if err != nil {
		t.Fatalf("予期せぬエラーが発生した: %v", err)
	}

	joint, err := measure.Product(a, b)
	if err != nil {
		t.Fatalf("予期せぬエラーが発生した: %v", err)
	}

	if joint.Len() != 4 {
		t.Fatalf("want: 4, got: %d", joint.Len())
	}

	eps := 1e-12
	for _, t1 := range a.Support() {
		for _, u := range b.Support() {
			want := a.Prob(t1).Value() * b.Prob(u).Value()
			got := joint.Prob(measure.NewPair(t1, u)).Value()
			if math.Abs(want-got) > eps {
				t.Errorf("want: %v, got: %v, key: (%s, %d)", want, got, t1, u)
			}
		}
	}
}

func TestProductWithDeterministic(t *testing.T) {
	a, err := measure.FromDistribution(map[string]measure.Probability{
		"前進": 0.9,
		"停止": 0.1,
	})
	if err != nil {
		t.Fatalf("予期せぬエラーが発生した: %v", err)
	}

	b := measure.Deterministic(7)

	joint, err := measure.Product(a, b)
	if err != nil {
		t.Fatalf("予期せぬエラーが発生した: %v", err)
	}

	if joint.Len() != 2 {
		t.Fatalf("want: 2, got: %d", joint.Len())
	}

	if joint.Prob(measure.NewPair("前進", 7)) != 0.9 {
		t.Errorf("want: 0.9, got: %v", joint.Prob(measure.NewPair("前進", 7)))
	}

	if joint.Prob(measure.NewPair("停止", 7)) != 0.1 {
		t.Errorf("want: 0.1, got: %v", joint.Prob(measure.NewPair("停止", 7)))
	}
}
