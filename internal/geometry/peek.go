package geometry

import "math"

// Rotation 旋转方向（顺时针 / 逆时针）
type Rotation string

const (
	Clockwise        Rotation = "cw"
	CounterClockwise Rotation = "ccw"
)

// ParseRotation 解析方向字符串，只接受 "cw" / "ccw"
func ParseRotation(s string) (Rotation, bool) {
	switch Rotation(s) {
	case Clockwise, CounterClockwise:
		return Rotation(s), true
	default:
		return "", false
	}
}

// Segment 墙体线段 [x1, y1, x2, y2]
type Segment [4]float64

// Length 线段长度
func (s Segment) Length() float64 {
	dx := s[2] - s[0]
	dy := s[3] - s[1]
	return math.Sqrt(dx*dx + dy*dy)
}

// Angle 线段当前角度（度）
//
// 规则：
//   - 水平且从右向左（atan 结果为 -0）视为 180°
//   - 从右向左且非水平时加 180°
//   - 竖直线段直接按 dy 的符号取 +90° / -90°
func (s Segment) Angle() float64 {
	dx := s[2] - s[0]
	dy := s[3] - s[1]

	if dx == 0 {
		switch {
		case dy > 0:
			return 90
		case dy < 0:
			return -90
		default:
			return 0
		}
	}

	deg := math.Atan(dy/dx) * 180 / math.Pi
	if deg == 0 && math.Signbit(deg) {
		return 180
	}
	if s[0] > s[2] && s[1] != s[3] {
		deg += 180
	}
	return deg
}

// ComputePeek 以铰链端为圆心旋转门线段，返回新的线段
//
// hinge 为 Clockwise 时第二个点固定、重新计算第一个点；为 CounterClockwise 时相反。
// open 为 Clockwise 时角度增加 degrees，否则减少。零长度线段原样返回。
func ComputePeek(seg Segment, hinge, open Rotation, degrees float64) Segment {
	length := seg.Length()
	if length == 0 {
		return seg
	}

	current := jsRound(seg.Angle())
	step := degrees
	if open != Clockwise {
		step = -degrees
	}
	rad := (current + step) * math.Pi / 180

	sign := 1.0
	hx, hy := seg[0], seg[1]
	if hinge == Clockwise {
		sign = -1
		hx, hy = seg[2], seg[3]
	}

	newX := roundDecimals(sign*math.Cos(rad), 4)*length + hx
	newY := roundDecimals(sign*math.Sin(rad), 4)*length + hy

	if hinge == Clockwise {
		return Segment{newX, newY, seg[2], seg[3]}
	}
	return Segment{seg[0], seg[1], newX, newY}
}

// jsRound 四舍五入，.5 向正无穷方向
func jsRound(x float64) float64 {
	return math.Floor(x + 0.5)
}

func roundDecimals(x float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return jsRound(x*scale) / scale
}
