package window

import "fmt"

// Split 仪表盘的已填充 / 未填充两部分，二者之和恒为 max-min
type Split struct {
	Filled    float64 `json:"filled"`
	Remaining float64 `json:"remaining"`
}

// Gauge 半圆仪表盘模型，超出量程的值被饱和而不是拒绝
type Gauge struct {
	title string
	min   float64
	max   float64
	value float64
	split Split
}

// NewGauge 创建仪表盘，初始值为 min
func NewGauge(title string, min, max float64) (*Gauge, error) {
	if !(max > min) {
		return nil, fmt.Errorf("gauge %q: max (%v) must be greater than min (%v)", title, max, min)
	}
	g := &Gauge{title: title, min: min, max: max}
	g.Update(min)
	return g, nil
}

// Update 钳位到 [min,max] 后重新计算 Split
func (g *Gauge) Update(v float64) Split {
	if v < g.min || v != v {
		v = g.min
	} else if v > g.max {
		v = g.max
	}
	g.value = v
	g.split = Split{Filled: v - g.min, Remaining: g.max - v}
	return g.split
}

func (g *Gauge) Title() string             { return g.title }
func (g *Gauge) Value() float64            { return g.value }
func (g *Gauge) Split() Split              { return g.split }
func (g *Gauge) Range() (float64, float64) { return g.min, g.max }
