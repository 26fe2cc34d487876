package window

import (
	"errors"
	"fmt"
)

// ErrChannelCountMismatch Update 传入的数值个数与通道数不一致
var ErrChannelCountMismatch = errors.New("channel count mismatch")

// ChannelCountMismatchError 调用方错误，不做部分更新
type ChannelCountMismatchError struct {
	Want int
	Got  int
}

func (e *ChannelCountMismatchError) Error() string {
	return fmt.Sprintf("channel count mismatch: want %d values, got %d", e.Want, e.Got)
}

func (e *ChannelCountMismatchError) Is(target error) bool {
	return target == ErrChannelCountMismatch
}

// Rolling 每个通道一个定长 FIFO 缓冲，用于折线图
type Rolling struct {
	labels []string
	max    int
	series [][]float64
}

// NewRolling 创建滚动窗口，labels 为通道名（如 X, Y, Z）
func NewRolling(labels []string, max int) (*Rolling, error) {
	if len(labels) == 0 {
		return nil, errors.New("at least one channel is required")
	}
	if max <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d", max)
	}
	series := make([][]float64, len(labels))
	for i := range series {
		series[i] = make([]float64, 0, max)
	}
	return &Rolling{
		labels: append([]string(nil), labels...),
		max:    max,
		series: series,
	}, nil
}

// Update 每个通道追加一个点，超出容量时丢弃最旧的点
func (r *Rolling) Update(values []float64) error {
	if len(values) != len(r.labels) {
		return &ChannelCountMismatchError{Want: len(r.labels), Got: len(values)}
	}
	for i, v := range values {
		s := append(r.series[i], v)
		if over := len(s) - r.max; over > 0 {
			// 原地左移，保持底层数组容量不增长
			n := copy(s, s[over:])
			s = s[:n]
		}
		r.series[i] = s
	}
	return nil
}

// Labels 通道名
func (r *Rolling) Labels() []string { return append([]string(nil), r.labels...) }

// Max 容量
func (r *Rolling) Max() int { return r.max }

// Len 当前点数（各通道相同）
func (r *Rolling) Len() int { return len(r.series[0]) }

// Series 第 i 个通道的副本，按插入顺序从旧到新
func (r *Rolling) Series(i int) []float64 {
	return append([]float64(nil), r.series[i]...)
}

// Points 通道名 -> 点序列
func (r *Rolling) Points() map[string][]float64 {
	out := make(map[string][]float64, len(r.labels))
	for i, l := range r.labels {
		out[l] = r.Series(i)
	}
	return out
}
