// Package strategy defines the block-based strategy model: a strategy
// is an ordered list of indicator, condition, and action blocks joined
// by block id. Compile validates the definition and parses condition
// expressions once, ahead of any simulation.
package strategy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantblocks/quantblocks/internal/core"
	"github.com/quantblocks/quantblocks/internal/indicator"
)

// BlockType discriminates the strategy block variants.
type BlockType string

const (
	BlockIndicator BlockType = "indicator"
	BlockCondition BlockType = "condition"
	BlockAction    BlockType = "action"
)

// Block is one unit of a strategy definition.
type Block struct {
	ID   string    `json:"id"`
	Type BlockType `json:"type"`

	// Indicator blocks
	Indicator string             `json:"indicator,omitempty"`
	Params    map[string]float64 `json:"params,omitempty"`

	// Condition blocks
	Expr string `json:"expr,omitempty"`

	// Action blocks
	Action core.Action `json:"action,omitempty"`
}

// Strategy is a user-defined trading strategy.
type Strategy struct {
	ID        string    `json:"strategyId,omitempty"`
	Name      string    `json:"name"`
	Symbols   []string  `json:"symbols,omitempty"`
	Timeframe string    `json:"timeframe,omitempty"`
	Blocks    []Block   `json:"blocks"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// ParseJSON decodes a strategy definition from JSON.
func ParseJSON(data []byte) (*Strategy, error) {
	var s Strategy
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, core.WrapError(core.ErrStrategyInvalid, err)
	}
	return &s, nil
}

// Condition pairs a condition block with its parsed expression.
type Condition struct {
	Block Block
	Expr  Expr
}

// Compiled is a validated strategy ready for simulation. Blocks are
// partitioned by type, preserving definition order within each group.
type Compiled struct {
	Strategy   *Strategy
	Indicators []Block
	Conditions []Condition
	Actions    []Block
}

// Compile validates the strategy and parses every condition expression
// into its AST. Unknown indicator kinds and malformed expressions fail
// here, before any bar is processed.
func Compile(s *Strategy) (*Compiled, error) {
	if s == nil || len(s.Blocks) == 0 {
		return nil, core.WrapError(core.ErrStrategyInvalid, fmt.Errorf("strategy has no blocks"))
	}

	c := &Compiled{Strategy: s}
	seen := make(map[string]struct{}, len(s.Blocks))

	for _, b := range s.Blocks {
		if b.ID == "" {
			return nil, core.WrapError(core.ErrStrategyInvalid, fmt.Errorf("block missing id"))
		}
		if _, dup := seen[b.ID]; dup {
			return nil, core.WrapError(core.ErrStrategyInvalid, fmt.Errorf("duplicate block id %q", b.ID))
		}
		seen[b.ID] = struct{}{}

		switch b.Type {
		case BlockIndicator:
			if !indicator.Known(b.Indicator) {
				return nil, core.WrapError(core.ErrUnknownIndicator, fmt.Errorf("%q", b.Indicator))
			}
			c.Indicators = append(c.Indicators, b)
		case BlockCondition:
			expr, err := ParseExpr(b.Expr)
			if err != nil {
				return nil, err
			}
			c.Conditions = append(c.Conditions, Condition{Block: b, Expr: expr})
		case BlockAction:
			if !b.Action.IsValid() {
				return nil, core.WrapError(core.ErrStrategyInvalid, fmt.Errorf("unknown action %q", b.Action))
			}
			c.Actions = append(c.Actions, b)
		default:
			return nil, core.WrapError(core.ErrStrategyInvalid, fmt.Errorf("unknown block type %q", b.Type))
		}
	}

	return c, nil
}

// ComputeIndicators evaluates every indicator block over bars and
// returns the series keyed for condition lookup: multi-series
// indicators publish id_<name> entries plus an id default alias;
// single-series indicators publish only the id.
func (c *Compiled) ComputeIndicators(bars []core.Bar) (map[string]indicator.Series, error) {
	out := make(map[string]indicator.Series, len(c.Indicators))
	for _, b := range c.Indicators {
		computed, err := indicator.Compute(bars, b.Indicator, b.Params)
		if err != nil {
			return nil, err
		}
		for name, series := range computed.Named {
			out[b.ID+"_"+name] = series
		}
		out[b.ID] = computed.Primary
	}
	return out, nil
}

// Timeframe returns the strategy timeframe, defaulting to daily bars.
func (c *Compiled) Timeframe() string {
	if c.Strategy.Timeframe == "" {
		return core.Timeframe1d
	}
	return c.Strategy.Timeframe
}
