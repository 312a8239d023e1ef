package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// This file defines unit-safe types for font size, container width and line-height.

// Unit represents the original unit of a length value as written by the author.
type Unit int

const (
	UnitNone Unit = iota // unit-less numbers like factors
	UnitMM               // millimeters
	UnitCM               // centimeters
	UnitIN               // inches
	UnitPT               // points
	UnitPX               // CSS pixels, 96 per inch
)

// Conversion constants between pt, mm and px.
const (
	PtToMm = 0.352777
	MmToPt = 1.0 / PtToMm
	PxToPt = 0.75
	PtToPx = 1.0 / PxToPt
)

var unitSuffixes = []struct {
	s string
	u Unit
}{{"mm", UnitMM}, {"cm", UnitCM}, {"in", UnitIN}, {"pt", UnitPT}, {"px", UnitPX}}

// UnitToString returns a short string for a Unit value.
func UnitToString(u Unit) string {
	for _, suf := range unitSuffixes {
		if suf.u == u {
			return suf.s
		}
	}
	return ""
}

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// Px is a shorthand for pixel lengths, the unit screens are configured in.
func Px(v float64) Length { return Length{Value: v, Unit: UnitPX} }

func (l Length) IsZero() bool { return l.Value == 0 }

// ToPT converts this length to points; unit-less values are taken as points.
func (l Length) ToPT() float64 {
	switch l.Unit {
	case UnitMM:
		return l.Value * MmToPt
	case UnitCM:
		return l.Value * 10 * MmToPt
	case UnitIN:
		return l.Value * 72
	case UnitPX:
		return l.Value * PxToPt
	default:
		return l.Value
	}
}

func (l Length) ToMM() float64 { return l.ToPT() * PtToMm }
func (l Length) ToPX() float64 { return l.ToPT() * PtToPx }

func (l Length) String() string {
	return strconv.FormatFloat(l.Value, 'f', -1, 64) + UnitToString(l.Unit)
}

// ParseLength parses "48px", "12pt", "18mm" or a bare number (unit none).
func ParseLength(value string) (Length, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Length{}, fmt.Errorf("长度为空")
	}
	unit := UnitNone
	num := v
	for _, suf := range unitSuffixes {
		if strings.HasSuffix(v, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(v, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Length{}, fmt.Errorf("无法解析长度 %q", value)
	}
	return Length{Value: f, Unit: unit}, nil
}

// MarshalText lets lengths round-trip through YAML/JSON configs as "48px".
func (l Length) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Length) UnmarshalText(b []byte) error {
	parsed, err := ParseLength(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// LineHeightKind distinguishes factor-based vs absolute line-height specification.
type LineHeightKind int

const (
	LineHeightFactor LineHeightKind = iota
	LineHeightAbsolute
)

// LineHeightSpec preserves original author intent: either a factor (e.g., 1.4x) or an absolute length (e.g., 60px).
type LineHeightSpec struct {
	Kind   LineHeightKind `json:"kind"`
	Factor float64        `json:"factor,omitempty"`
	Len    Length         `json:"len,omitempty"`
}

// Factor returns a factor-based line height.
func Factor(f float64) LineHeightSpec { return LineHeightSpec{Kind: LineHeightFactor, Factor: f} }

// ResolvePT computes the absolute line height in points for the given font size.
func (s LineHeightSpec) ResolvePT(fontSize Length) float64 {
	switch s.Kind {
	case LineHeightAbsolute:
		return s.Len.ToPT()
	default:
		if s.Factor <= 0 {
			// fallback to 1.4x if unspecified
			return fontSize.ToPT() * 1.4
		}
		return fontSize.ToPT() * s.Factor
	}
}

func (s LineHeightSpec) String() string {
	if s.Kind == LineHeightAbsolute {
		return s.Len.String()
	}
	return strconv.FormatFloat(s.Factor, 'f', -1, 64) + "x"
}

// ParseLineHeight accepts "1.4x", a bare factor "1.4", or an absolute length "60px".
func ParseLineHeight(value string) (LineHeightSpec, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if strings.HasSuffix(v, "x") && !strings.HasSuffix(v, "px") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "x"), 64)
		if err != nil || f <= 0 {
			return LineHeightSpec{}, fmt.Errorf("无法解析行高倍数 %q", value)
		}
		return Factor(f), nil
	}
	l, err := ParseLength(v)
	if err != nil {
		return LineHeightSpec{}, err
	}
	if l.Unit == UnitNone {
		if l.Value <= 0 {
			return LineHeightSpec{}, fmt.Errorf("行高必须为正数 %q", value)
		}
		return Factor(l.Value), nil
	}
	return LineHeightSpec{Kind: LineHeightAbsolute, Len: l}, nil
}

func (s LineHeightSpec) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *LineHeightSpec) UnmarshalText(b []byte) error {
	// 零值序列化为 "0x"，读回时保持零值，由 ResolvePT 回退到默认行高
	if v := strings.TrimSpace(string(b)); v == "" || v == "0x" {
		*s = LineHeightSpec{}
		return nil
	}
	parsed, err := ParseLineHeight(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// emPerUnit 表示一个宽度单位对应的 em 数：拉丁字符约半个字宽，汉字占满一个字宽（2 单位）。
const emPerUnit = 0.5

// WidthBudget 根据字号与容器宽度推导每行的宽度单位预算，供分行器使用。
// 结果未做上下限裁剪，裁剪由分行器负责。
func WidthBudget(fontSize, container Length) int {
	fs := fontSize.ToPT()
	if fs <= 0 {
		return 0
	}
	return floorInt(container.ToPT() / (fs * emPerUnit))
}

// floorInt 向下取整并限制在 int32 范围内，字号极小时不会溢出成负数。
func floorInt(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int(math.Floor(f))
}
