package inspector

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Widget selects how a view field is drawn.
type Widget uint8

const (
	WidgetAuto  Widget = iota
	WidgetLabel        // One line of text
	WidgetBar          // Horizontal bar, or a column group for arrays
	WidgetVec          // Signed columns per axis around a zero line
	WidgetAngle        // Compass needle for an angle or a rotation
	WidgetBool         // On/off lamp
	WidgetSkip
)

var widgetNames = map[string]Widget{
	"label": WidgetLabel,
	"bar":   WidgetBar,
	"vec":   WidgetVec,
	"angle": WidgetAngle,
	"bool":  WidgetBool,
	"skip":  WidgetSkip,
}

var (
	vecType  = reflect.TypeOf(r3.Vec{})
	quatType = reflect.TypeOf(quat.Number{})
)

// Tag is a parsed inspect struct tag:
//
//	`inspect:"vec,max:10,labels:x|y|z"`
//	`inspect:"label,fmt:%.3f"`
type Tag struct {
	Widget Widget
	Format string   // Printf verb for each scalar component
	Max    float64  // Full scale of bars and columns
	Labels []string // Column captions
}

// ParseTag parses an inspect tag. Unknown widgets fall back to auto
// detection and a missing or invalid max is 1.
func ParseTag(tag string) Tag {
	t := Tag{Max: 1}
	parts := strings.Split(tag, ",")
	t.Widget = widgetNames[strings.TrimSpace(parts[0])]
	for _, part := range parts[1:] {
		key, val, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}
		switch key {
		case "fmt":
			t.Format = val
		case "max":
			if m, err := strconv.ParseFloat(val, 64); err == nil && m > 0 {
				t.Max = m
			}
		case "labels":
			t.Labels = strings.Split(val, "|")
		}
	}
	return t
}

// Field is one inspected value with its drawing hints.
type Field struct {
	Name  string
	Value any
	Tag
}

// ExtractFields lists the exported fields of a view struct in declaration
// order.
func ExtractFields(view any) []Field {
	v := reflect.ValueOf(view)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()
	fields := make([]Field, 0, v.NumField())
	for i := 0; i < v.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := ParseTag(sf.Tag.Get("inspect"))
		if tag.Widget == WidgetSkip {
			continue
		}
		if tag.Widget == WidgetAuto {
			tag.Widget = autoDetectWidget(sf.Type)
		}
		fields = append(fields, Field{Name: sf.Name, Value: v.Field(i).Interface(), Tag: tag})
	}
	return fields
}

// autoDetectWidget picks a widget for an untagged field. Vectors get signed
// columns and rotations a compass.
func autoDetectWidget(t reflect.Type) Widget {
	switch t {
	case vecType:
		return WidgetVec
	case quatType:
		return WidgetAngle
	}
	switch t.Kind() {
	case reflect.Bool:
		return WidgetBool
	case reflect.Array, reflect.Slice:
		return WidgetBar
	}
	return WidgetLabel
}

// FormatValue renders a field value as text. Vectors print per axis and
// rotations as an angle about an axis.
func FormatValue(value any, format string) string {
	scalar := func(x float64) string {
		if format == "" {
			return strconv.FormatFloat(x, 'f', 2, 64)
		}
		return fmt.Sprintf(format, x)
	}
	switch v := value.(type) {
	case r3.Vec:
		return scalar(v.X) + " " + scalar(v.Y) + " " + scalar(v.Z)
	case quat.Number:
		axis, angle := AxisAngle(v)
		return fmt.Sprintf("%.0f deg about %.2f %.2f %.2f", angle*180/math.Pi, axis.X, axis.Y, axis.Z)
	case float32:
		return scalar(float64(v))
	case float64:
		return scalar(v)
	}
	if format != "" {
		return fmt.Sprintf(format, value)
	}
	return fmt.Sprint(value)
}

// Scalar converts numeric values to float64.
func Scalar(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint32:
		return float64(v), true
	}
	return 0, false
}

// Components splits vectors, rotations and numeric arrays into their
// scalar parts.
func Components(value any) ([]float64, bool) {
	switch v := value.(type) {
	case r3.Vec:
		return []float64{v.X, v.Y, v.Z}, true
	case quat.Number:
		return []float64{v.Real, v.Imag, v.Jmag, v.Kmag}, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Array && rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]float64, rv.Len())
	for i := range out {
		x, ok := Scalar(rv.Index(i).Interface())
		if !ok {
			return nil, false
		}
		out[i] = x
	}
	return out, true
}

// Angle returns the compass angle of a scalar or the rotation angle of a
// quaternion.
func Angle(value any) (float64, bool) {
	if q, ok := value.(quat.Number); ok {
		_, a := AxisAngle(q)
		return a, true
	}
	return Scalar(value)
}

// AxisAngle decomposes a rotation. The identity reports the Z axis.
func AxisAngle(q quat.Number) (axis r3.Vec, angle float64) {
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	angle = 2 * math.Acos(math.Min(1, q.Real))
	s := math.Sqrt(math.Max(0, 1-q.Real*q.Real))
	if s < 1e-9 {
		return r3.Vec{Z: 1}, 0
	}
	return r3.Vec{X: q.Imag / s, Y: q.Jmag / s, Z: q.Kmag / s}, angle
}

// Ratio clamps value/full to [0, 1].
func Ratio(value, full float64) float64 {
	return math.Max(0, math.Min(1, value/full))
}
