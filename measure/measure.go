// Package measure provides validated probabilities and finite discrete
// probability measures, the building blocks for stochastic transitions.
//
// Package measure は、検証済みの確率値と有限離散確率測度を提供します。
// 確率的な状態遷移を表す為の基礎部品です。
package measure

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats/scalar"
)

// SumTolerance is the absolute tolerance used to decide whether
// a weight total counts as 1.
//
// SumTolerance は、重みの合計が1と見なせるかを判定する絶対許容誤差です。
const SumTolerance = 1e-10

var (
	ErrProbabilityOutOfRange = errors.New("確率エラー: [0, 1] の範囲外です")
	ErrInvalidMeasure        = errors.New("測度エラー: 重みの合計が1ではありません")
	ErrMismatchedSupport     = errors.New("測度エラー: 台と重みが一致しません")
	ErrEmptyMeasure          = errors.New("測度エラー: 台が空である為、サンプリング出来ません")
)

// Probability is a validated probability value. The zero value is a
// valid probability of 0.
//
// Probability は検証済みの確率値です。ゼロ値は確率0として有効です。
type Probability float64

const Zero Probability = 0.0

// NewProbability validates v and wraps it. Values outside [0, 1]
// (including NaN) are rejected.
//
// NewProbability は v を検証してから確率値として返します。
// [0, 1] の範囲外（NaNを含む）は拒否されます。
func NewProbability(v float64) (Probability, error) {
	// NaNは全ての比較がfalseになる為、この条件で弾ける。
	if !(v >= 0.0 && v <= 1.0) {
		return Zero, fmt.Errorf("%w: %v", ErrProbabilityOutOfRange, v)
	}
	return Probability(v), nil
}

func (p Probability) Value() float64 {
	return float64(p)
}

// Complement returns 1 - p.
func (p Probability) Complement() Probability {
	return Probability(1.0 - float64(p))
}

// And returns the joint probability of two independent events.
//
// And は、独立な2つの事象が共に起こる確率を返します。
func (p Probability) And(q Probability) Probability {
	return p * q
}

// Or returns the probability that at least one of two independent
// events occurs.
//
// Or は、独立な2つの事象の少なくとも一方が起こる確率を返します。
func (p Probability) Or(q Probability) Probability {
	return p + q - p*q
}

// Pair is an ordered pair of comparable values. It is the joint value
// type of Product and the composed state type of the product operators.
//
// Pair は比較可能な値の順序対です。Product の結合値型であり、
// 直積演算子の合成状態型でもあります。
type Pair[F, S comparable] struct {
	First  F
	Second S
}

func NewPair[F, S comparable](first F, second S) Pair[F, S] {
	return Pair[F, S]{First: first, Second: second}
}

// Measure is a finite discrete probability measure whose weights sum
// to 1. The support keeps its construction order so that sampling
// walks the same path for a given instance.
//
// Measure は重みの合計が1である有限離散確率測度です。
// 台は構築時の順序を保持しており、同一インスタンスに対する
// サンプリングの走査順は常に同じです。
type Measure[T comparable] struct {
	support []T
	weights map[T]Probability
}

// Deterministic creates a point measure that assigns all weight to v.
//
// Deterministic は、vに全ての重みを割り当てる点測度を作成します。
func Deterministic[T comparable](v T) Measure[T] {
	return Measure[T]{
		support: []T{v},
		weights: map[T]Probability{v: 1.0},
	}
}

// FromDistribution creates a measure from a value-to-probability map.
// The weights must sum to 1 within SumTolerance. The support is
// canonicalized into the lexicographic order of the values' string
// form, so measures built from equal distributions always sample
// identically under a fixed seed.
//
// FromDistribution は、値から確率への対応から測度を作成します。
// 重みの合計は SumTolerance の範囲内で1である必要があります。
// 台は値の文字列表現の辞書順に正規化される為、同じ分布から作った
// 測度は固定シードの下で常に同じサンプル列になります。
func FromDistribution[T comparable](dist map[T]Probability) (Measure[T], error) {
	support := make([]T, 0, len(dist))
	weights := make(map[T]Probability, len(dist))
	for v, p := range dist {
		support = append(support, v)
		weights[v] = p
	}

	// mapの反復順は実行の度に変わる。
	slices.SortFunc(support, func(a, b T) int {
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	})
	return FromOrdered(support, weights)
}

// FromOrdered builds a measure whose support order is fully caller
// controlled: sampling walks the support in the given order. support
// must list exactly the values weighted in weights. Product and the
// per-step transition measures of the stochastic worlds use this to
// keep sampling reproducible under a fixed seed.
//
// FromOrdered は、台の順序を呼び出し側が完全に制御する測度を作成
// します。サンプリングは与えられた順序で台を走査します。support は
// weights で重み付けされた値と過不足無く一致している必要があります。
func FromOrdered[T comparable](support []T, weights map[T]Probability) (Measure[T], error) {
	if len(support) != len(weights) {
		return Measure[T]{}, fmt.Errorf("%w: 台 = %d, 重み = %d", ErrMismatchedSupport, len(support), len(weights))
	}

	var sum float64
	for _, v := range support {
		sum += weights[v].Value()
	}
	if !scalar.EqualWithinAbs(sum, 1.0, SumTolerance) {
		return Measure[T]{}, fmt.Errorf("%w: 合計 = %v", ErrInvalidMeasure, sum)
	}
	return Measure[T]{support: support, weights: weights}, nil
}

// Prob returns the weight assigned to v, 0 if v is not in the support.
func (m Measure[T]) Prob(v T) Probability {
	return m.weights[v]
}

// Support returns the values carrying weight, in construction order.
func (m Measure[T]) Support() []T {
	return m.support
}

func (m Measure[T]) Len() int {
	return len(m.support)
}

// Dist returns a copy of the value-to-probability map.
func (m Measure[T]) Dist() map[T]Probability {
	dist := make(map[T]Probability, len(m.weights))
	for v, p := range m.weights {
		dist[v] = p
	}
	return dist
}

// Sample draws a value according to the weights: a uniform number in
// [0, 1) walks the support and the first value whose cumulative weight
// reaches it is returned. An empty measure returns ErrEmptyMeasure.
//
// Sample は重みに従って値を1つ抽出します。[0, 1) の一様乱数に対して
// 台を順に走査し、累積重みが乱数に達した最初の値を返します。
// 台が空の場合は ErrEmptyMeasure を返します。
func (m Measure[T]) Sample(rng *rand.Rand) (T, error) {
	if len(m.support) == 0 {
		var zero T
		return zero, ErrEmptyMeasure
	}

	threshold := rng.Float64()
	var cum float64
	for _, v := range m.support {
		cum += m.weights[v].Value()
		if cum >= threshold {
			return v, nil
		}
	}
	// 浮動小数点の丸めで累積が1に届かなかった場合は末尾を返す。
	return m.support[len(m.support)-1], nil
}

// Product returns the independent joint measure of a and b.
// The weight at (t, u) is a(t) * b(u).
//
// Product は a と b の独立な同時測度を返します。
// (t, u) の重みは a(t) * b(u) です。
func Product[T, U comparable](a Measure[T], b Measure[U]) (Measure[Pair[T, U]], error) {
	support := make([]Pair[T, U], 0, len(a.support)*len(b.support))
	weights := make(map[Pair[T, U]]Probability, len(a.support)*len(b.support))

	for _, t := range a.support {
		for _, u := range b.support {
			pair := NewPair(t, u)
			support = append(support, pair)
			weights[pair] = a.weights[t].And(b.weights[u])
		}
	}
	return FromOrdered(support, weights)
}
