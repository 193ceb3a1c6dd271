// Package grid provides a rectangular board world. Walls are carved
// out of the state universe, moves clamp at edges and blocked cells,
// and an optional slip probability makes transitions stochastic.
// Goal cells and terminal cells are configured independently, so a
// board can reward states it does not end on.
//
// Package grid は長方形の盤面の世界を提供します。壁は状態空間から
// 取り除かれ、移動は盤面の端や塞がれたマスで打ち止めになります。
// 滑り確率を設定すると遷移は確率的になります。ゴールのマスと終端の
// マスは独立に設定できる為、終了しない状態に報酬を与える盤面も
// 作れます。
package grid

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/sw965/raven/mdp"
	"github.com/sw965/raven/measure"
)

var ErrInvalidConfig = errors.New("Configエラー: 値が不正です")

// Cell is a board coordinate. Row grows downward.
type Cell struct {
	Row int
	Col int
}

type Action int

const (
	Up Action = iota
	Down
	Left
	Right
)

func (a Action) String() string {
	switch a {
	case Up:
		return "Up"
	case Down:
		return "Down"
	case Left:
		return "Left"
	case Right:
		return "Right"
	default:
		return "Unknown"
	}
}

var allActions = []Action{Up, Down, Left, Right}

// Config describes one board.
type Config struct {
	Rows int
	Cols int

	// Walls are blocked cells. They are removed from the state
	// universe and moves into them stay in place.
	Walls []Cell

	// Goals grant GoalBonus when a move can land on them.
	Goals []Cell

	// Terminals end the episode.
	Terminals []Cell

	// StepReward is added on every move, usually negative.
	StepReward float64

	// GoalBonus is added when any possible outcome of a move is a goal.
	GoalBonus float64

	// SlipProb is the probability that the executed direction is
	// redrawn uniformly from all four directions.
	SlipProb float64
}

func (c Config) inBounds(cell Cell) bool {
	return cell.Row >= 0 && cell.Row < c.Rows && cell.Col >= 0 && cell.Col < c.Cols
}

func (c Config) isWall(cell Cell) bool {
	return slices.Contains(c.Walls, cell)
}

func (c Config) Validate() error {
	if c.Rows < 1 || c.Cols < 1 {
		return fmt.Errorf("%w: Rows = %d, Cols = %d", ErrInvalidConfig, c.Rows, c.Cols)
	}

	if math.IsNaN(c.SlipProb) || c.SlipProb < 0.0 || c.SlipProb > 1.0 {
		return fmt.Errorf("%w: SlipProb = %v", ErrInvalidConfig, c.SlipProb)
	}

	for _, wall := range c.Walls {
		if !c.inBounds(wall) {
			return fmt.Errorf("%w: 壁が盤面の外にあります: %v", ErrInvalidConfig, wall)
		}
	}

	for _, goal := range c.Goals {
		if !c.inBounds(goal) {
			return fmt.Errorf("%w: ゴールが盤面の外にあります: %v", ErrInvalidConfig, goal)
		}
		if c.isWall(goal) {
			return fmt.Errorf("%w: ゴールが壁と重なっています: %v", ErrInvalidConfig, goal)
		}
	}

	for _, terminal := range c.Terminals {
		if !c.inBounds(terminal) {
			return fmt.Errorf("%w: 終端が盤面の外にあります: %v", ErrInvalidConfig, terminal)
		}
		if c.isWall(terminal) {
			return fmt.Errorf("%w: 終端が壁と重なっています: %v", ErrInvalidConfig, terminal)
		}
	}
	return nil
}

// resolve applies one direction. Moves off the board or into a wall
// stay in place.
func (c Config) resolve(cell Cell, action Action) Cell {
	next := cell
	switch action {
	case Up:
		next.Row--
	case Down:
		next.Row++
	case Left:
		next.Col--
	case Right:
		next.Col++
	}

	if !c.inBounds(next) || c.isWall(next) {
		return cell
	}
	return next
}

// New builds the board world described by config.
func New(config Config) (mdp.Logic[Cell, Action], error) {
	if err := config.Validate(); err != nil {
		return mdp.Logic[Cell, Action]{}, err
	}

	states := make([]Cell, 0, config.Rows*config.Cols)
	for i := 0; i < config.Rows; i++ {
		for j := 0; j < config.Cols; j++ {
			cell := Cell{Row: i, Col: j}
			if config.isWall(cell) {
				continue
			}
			states = append(states, cell)
		}
	}

	transitionFunc := func(cell Cell, action Action) (measure.Measure[Cell], float64, error) {
		var m measure.Measure[Cell]
		if config.SlipProb == 0.0 {
			m = measure.Deterministic(config.resolve(cell, action))
		} else {
			// 複数の方向が同じマスに行き着く事があるので重みは加算で
			// まとめる。台は意図した方向、次いで各方向の初出順で固定し、
			// 固定シードでのサンプリングを再現可能にする。
			intended := config.resolve(cell, action)
			support := []Cell{intended}
			weights := map[Cell]measure.Probability{
				intended: measure.Probability(1.0 - config.SlipProb),
			}

			slipEach := measure.Probability(config.SlipProb / float64(len(allActions)))
			for _, a := range allActions {
				outcome := config.resolve(cell, a)
				if _, ok := weights[outcome]; !ok {
					support = append(support, outcome)
				}
				weights[outcome] += slipEach
			}

			var err error
			m, err = measure.FromOrdered(support, weights)
			if err != nil {
				return measure.Measure[Cell]{}, 0.0, err
			}
		}

		reward := config.StepReward
		for _, outcome := range m.Support() {
			if slices.Contains(config.Goals, outcome) {
				reward += config.GoalBonus
				break
			}
		}
		return m, reward, nil
	}

	return mdp.Logic[Cell, Action]{
		States: mdp.NewSampler(states),
		ActionsFunc: func(cell Cell) []Action {
			return allActions
		},
		IsFinalFunc: func(cell Cell) bool {
			return slices.Contains(config.Terminals, cell)
		},
		IsGoalFunc: func(cell Cell) bool {
			return slices.Contains(config.Goals, cell)
		},
		TransitionFunc: transitionFunc,
	}, nil
}
