package domain

import (
	"fmt"
	"math"
	"strings"
)

// StrokeKind 表示一次绘制操作的图形类型。
type StrokeKind string

const (
	StrokeFreehand  StrokeKind = "freehand"
	StrokeLine      StrokeKind = "line"
	StrokeRectangle StrokeKind = "rectangle"
	StrokeCircle    StrokeKind = "circle"
)

// ParseStrokeKind 解析客户端传入的类型字符串，空字符串视为 freehand。
func ParseStrokeKind(s string) (StrokeKind, error) {
	switch k := StrokeKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return StrokeFreehand, nil
	case StrokeFreehand, StrokeLine, StrokeRectangle, StrokeCircle:
		return k, nil
	default:
		return "", fmt.Errorf("unsupported stroke kind %q", s)
	}
}

// Point 是共享坐标系中的一个点。
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke 是一条已提交的绘制记录，追加到房间的 stroke log 后不可修改。
type Stroke struct {
	ID         string     `json:"id"`
	AuthorName string     `json:"userName"`
	UserID     string     `json:"userId,omitempty"`
	Kind       StrokeKind `json:"kind"`
	Points     []Point    `json:"points"`
	Color      string     `json:"color"`
	Width      float64    `json:"width"`
	Length     float64    `json:"length"`
	Timestamp  int64      `json:"timestamp"` // 提交时间 (Unix 毫秒)
	Seq        uint64     `json:"seq"`       // 追加时的房间版本号
}

// PathLength 计算点序列的折线长度。
func PathLength(points []Point) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += math.Hypot(points[i].X-points[i-1].X, points[i].Y-points[i-1].Y)
	}
	return total
}

// Normalize 校验并补全客户端提交的 stroke。
// 缺省的 kind 视为 freehand，未提供 length 时按点序列计算。
func (s Stroke) Normalize() (Stroke, error) {
	kind, err := ParseStrokeKind(string(s.Kind))
	if err != nil {
		return Stroke{}, err
	}
	if len(s.Points) == 0 {
		return Stroke{}, fmt.Errorf("stroke has no points")
	}
	for _, p := range s.Points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return Stroke{}, fmt.Errorf("stroke contains a non-finite point")
		}
	}
	if s.Width < 0 {
		return Stroke{}, fmt.Errorf("stroke width must not be negative")
	}
	s.Kind = kind
	if s.Length <= 0 {
		s.Length = PathLength(s.Points)
	}
	// 复制一份点序列，避免与解码缓冲区共享底层数组
	s.Points = append([]Point(nil), s.Points...)
	return s, nil
}
