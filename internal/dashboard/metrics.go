package dashboard

import (
	"math"

	"github.com/hichers/hichers/internal/gateway"
)

// SumFreeStamps totals the free-stamp counts in a web-info value. The remote
// sends a plain number, an array of {schemeId, count}, or an object keyed by
// scheme id holding {schemeId, count}. Counts may be numbers or numeric
// strings; anything else is ignored.
func SumFreeStamps(v any) int {
	switch x := v.(type) {
	case []any:
		total := 0
		for _, item := range x {
			total += entryCount(item)
		}
		return total
	case map[string]any:
		if _, ok := gateway.Fields(x).Any("count"); ok {
			return entryCount(x)
		}
		total := 0
		for _, item := range x {
			total += entryCount(item)
		}
		return total
	default:
		n, _ := gateway.ToInt(v)
		return n
	}
}

func entryCount(v any) int {
	if m, ok := v.(map[string]any); ok {
		c, _ := gateway.Fields(m).Any("count")
		n, _ := gateway.ToInt(c)
		return n
	}
	n, _ := gateway.ToInt(v)
	return n
}

// Growth is the percentage change from previous to current. No change from
// zero is 0, any rise from zero is 100.
func Growth(current, previous float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return (current - previous) / previous * 100
}

// Direction of a month-over-month change.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
	Flat Direction = "flat"
)

// Delta is a month-over-month change.
type Delta struct {
	Percent   float64   `json:"percent"`
	Direction Direction `json:"direction"`
}

// NewDelta computes the change between two values, rounded to one decimal.
func NewDelta(current, previous float64) Delta {
	p := math.Round(Growth(current, previous)*10) / 10
	switch {
	case p > 0:
		return Delta{Percent: p, Direction: Up}
	case p < 0:
		return Delta{Percent: p, Direction: Down}
	default:
		return Delta{Percent: 0, Direction: Flat}
	}
}
