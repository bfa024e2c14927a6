package inspector

import (
	"fmt"
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Widget colors
var (
	ColorTrack    = rl.Color{R: 40, G: 40, B: 40, A: 255}
	ColorPositive = rl.Color{R: 100, G: 180, B: 100, A: 255}
	ColorNegative = rl.Color{R: 180, G: 80, B: 80, A: 255}
	ColorText     = rl.Color{R: 220, G: 220, B: 220, A: 255}
	ColorTextDim  = rl.Color{R: 150, G: 150, B: 150, A: 255}
	ColorDial     = rl.Color{R: 50, G: 50, B: 60, A: 255}
	ColorNeedle   = rl.Color{R: 255, G: 200, B: 100, A: 255}
	ColorLampOff  = rl.Color{R: 80, G: 80, B: 80, A: 255}
)

// Row layout, in pixels.
const (
	labelWidth  = 80
	textSize    = 14
	lineHeight  = 20
	barWidth    = 120
	barHeight   = 14
	columnWidth = 20
	columnGap   = 2
	columnDepth = 30
	captionSize = 8
	dialSize    = 40
)

// Height returns the rows a field takes. DrawField advances by the same
// amount.
func Height(f Field) int32 {
	switch f.Widget {
	case WidgetVec, WidgetBar:
		if _, ok := Components(f.Value); ok {
			h := int32(columnDepth + 4)
			if len(f.Labels) > 0 {
				h += captionSize + 2
			}
			return h
		}
		if f.Widget == WidgetBar {
			return barHeight + 4
		}
	case WidgetAngle:
		return dialSize + 4
	case WidgetBool:
		return barHeight + 4
	}
	return lineHeight
}

// DrawField draws f at x, y and returns its height. Values a widget cannot
// show fall back to a label.
func DrawField(x, y int32, f Field) int32 {
	switch f.Widget {
	case WidgetVec, WidgetBar:
		if cs, ok := Components(f.Value); ok {
			drawColumns(x, y, f, cs, f.Widget == WidgetVec)
			return Height(f)
		}
		if v, ok := Scalar(f.Value); ok && f.Widget == WidgetBar {
			drawBar(x, y, f.Name, v, f.Max)
			return Height(f)
		}
	case WidgetAngle:
		if a, ok := Angle(f.Value); ok {
			drawDial(x, y, f, a)
			return Height(f)
		}
	case WidgetBool:
		if on, ok := f.Value.(bool); ok {
			drawLamp(x, y, f.Name, on)
			return Height(f)
		}
	}
	rl.DrawText(f.Name+": "+FormatValue(f.Value, f.Format), x, y, 16, ColorText)
	return lineHeight
}

// drawBar fills a track in proportion to value/full.
func drawBar(x, y int32, name string, value, full float64) {
	ratio := Ratio(value, full)
	rl.DrawText(name, x, y, textSize, ColorTextDim)

	bx := x + labelWidth
	rl.DrawRectangle(bx, y, barWidth, barHeight, ColorTrack)
	fill := ColorPositive
	if ratio < 0.3 {
		fill = ColorNegative
	}
	rl.DrawRectangle(bx, y, int32(barWidth*ratio), barHeight, fill)
	rl.DrawText(fmt.Sprintf("%.2f", value), bx+barWidth+5, y, textSize, ColorTextDim)
}

// drawColumns draws one column per component. Signed columns grow up or
// down from a centre line, unsigned ones fill from the bottom.
func drawColumns(x, y int32, f Field, cs []float64, signed bool) {
	rl.DrawText(f.Name, x, y, textSize, ColorTextDim)
	bx := x + labelWidth
	mid := y + columnDepth/2

	for i, c := range cs {
		cx := bx + int32(i)*(columnWidth+columnGap)
		rl.DrawRectangle(cx, y, columnWidth, columnDepth, ColorTrack)
		if signed {
			h := int32(float64(columnDepth/2) * Ratio(math.Abs(c), f.Max))
			if c >= 0 {
				rl.DrawRectangle(cx, mid-h, columnWidth, h, ColorPositive)
			} else {
				rl.DrawRectangle(cx, mid, columnWidth, h, ColorNegative)
			}
			continue
		}
		r := Ratio(c, f.Max)
		h := int32(columnDepth * r)
		rl.DrawRectangle(cx, y+columnDepth-h, columnWidth, h, lerpColor(ColorNegative, ColorPositive, r))
	}
	if signed {
		end := bx + int32(len(cs))*(columnWidth+columnGap) - columnGap
		rl.DrawLine(bx, mid, end, mid, ColorTextDim)
	}
	rl.DrawText(FormatValue(f.Value, f.Format), bx+int32(len(cs))*(columnWidth+columnGap)+5, y+columnDepth/2-7, textSize, ColorTextDim)

	if len(f.Labels) != len(cs) {
		return
	}
	for i, label := range f.Labels {
		lx := bx + int32(i)*(columnWidth+columnGap) + columnWidth/2
		w := rl.MeasureText(label, captionSize)
		rl.DrawText(label, lx-w/2, y+columnDepth+2, captionSize, ColorTextDim)
	}
}

// drawDial points a needle at angle radians.
func drawDial(x, y int32, f Field, angle float64) {
	cx := x + labelWidth + dialSize/2
	cy := y + dialSize/2
	r := float32(dialSize / 2)

	rl.DrawText(f.Name, x, cy-7, textSize, ColorTextDim)
	rl.DrawCircle(cx, cy, r, ColorDial)
	rl.DrawCircleLines(cx, cy, r, ColorTextDim)
	tip := rl.Vector2{
		X: float32(cx) + (r-4)*float32(math.Cos(angle)),
		Y: float32(cy) + (r-4)*float32(math.Sin(angle)),
	}
	rl.DrawLineEx(rl.Vector2{X: float32(cx), Y: float32(cy)}, tip, 2, ColorNeedle)

	text := fmt.Sprintf("%.0f deg", angle*180/math.Pi)
	if _, scalar := f.Value.(float64); !scalar {
		text = FormatValue(f.Value, f.Format)
	}
	rl.DrawText(text, cx+dialSize/2+5, cy-7, textSize, ColorTextDim)
}

// drawLamp shows a boolean as a coloured square.
func drawLamp(x, y int32, name string, on bool) {
	rl.DrawText(name, x, y, textSize, ColorTextDim)
	color, text := ColorLampOff, "OFF"
	if on {
		color, text = ColorPositive, "ON"
	}
	rl.DrawRectangle(x+labelWidth, y, barHeight, barHeight, color)
	rl.DrawText(text, x+labelWidth+barHeight+5, y, textSize, color)
}

func lerpColor(a, b rl.Color, t float64) rl.Color {
	mix := func(p, q uint8) uint8 { return uint8(float64(p) + (float64(q)-float64(p))*t) }
	return rl.Color{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}
