package style

import (
	"fmt"
	"math"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Color is an 8-bit RGBA color. It is comparable, so it can be part of a
// batch appearance key.
type Color struct {
	R, G, B, A uint8
}

var (
	White       = Color{255, 255, 255, 255}
	Black       = Color{0, 0, 0, 255}
	Transparent = Color{}
)

// ParseColor parses CSS color names ("red"), "#rgb", "#rrggbb" and the
// "0xrrggbb" form. The result is opaque.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if c, ok := cssColors[strings.ToLower(s)]; ok {
		return c, nil
	}
	hex := s
	if strings.HasPrefix(hex, "0x") || strings.HasPrefix(hex, "0X") {
		hex = "#" + hex[2:]
	} else if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	if len(hex) != 4 && len(hex) != 7 {
		return Color{}, &ErrInvalidColor{Value: s}
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return Color{}, &ErrInvalidColor{Value: s}
	}
	r, g, b := c.RGB255()
	return Color{R: r, G: g, B: b, A: 255}, nil
}

// WithOpacity returns c with its alpha channel scaled by opacity in [0, 1].
func (c Color) WithOpacity(opacity float64) Color {
	opacity = math.Max(0, math.Min(1, opacity))
	c.A = uint8(math.Round(float64(c.A) * opacity))
	return c
}

// Hex returns "#rrggbb" for opaque colors and "#rrggbbaa" otherwise.
func (c Color) Hex() string {
	rgb := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}.Hex()
	if c.A == 255 {
		return rgb
	}
	return fmt.Sprintf("%s%02x", rgb, c.A)
}

// String implements fmt.Stringer.
func (c Color) String() string {
	return c.Hex()
}

var cssColors = map[string]Color{
	"aqua":           {0, 255, 255, 255},
	"aquamarine":     {127, 255, 212, 255},
	"azure":          {240, 255, 255, 255},
	"beige":          {245, 245, 220, 255},
	"black":          {0, 0, 0, 255},
	"blue":           {0, 0, 255, 255},
	"blueviolet":     {138, 43, 226, 255},
	"brown":          {165, 42, 42, 255},
	"cadetblue":      {95, 158, 160, 255},
	"chartreuse":     {127, 255, 0, 255},
	"chocolate":      {210, 105, 30, 255},
	"coral":          {255, 127, 80, 255},
	"cornflowerblue": {100, 149, 237, 255},
	"crimson":        {220, 20, 60, 255},
	"cyan":           {0, 255, 255, 255},
	"darkblue":       {0, 0, 139, 255},
	"darkcyan":       {0, 139, 139, 255},
	"darkgray":       {169, 169, 169, 255},
	"darkgreen":      {0, 100, 0, 255},
	"darkgrey":       {169, 169, 169, 255},
	"darkmagenta":    {139, 0, 139, 255},
	"darkorange":     {255, 140, 0, 255},
	"darkred":        {139, 0, 0, 255},
	"darkviolet":     {148, 0, 211, 255},
	"deeppink":       {255, 20, 147, 255},
	"deepskyblue":    {0, 191, 255, 255},
	"dodgerblue":     {30, 144, 255, 255},
	"firebrick":      {178, 34, 34, 255},
	"forestgreen":    {34, 139, 34, 255},
	"fuchsia":        {255, 0, 255, 255},
	"gold":           {255, 215, 0, 255},
	"goldenrod":      {218, 165, 32, 255},
	"gray":           {128, 128, 128, 255},
	"green":          {0, 128, 0, 255},
	"greenyellow":    {173, 255, 47, 255},
	"grey":           {128, 128, 128, 255},
	"hotpink":        {255, 105, 180, 255},
	"indigo":         {75, 0, 130, 255},
	"khaki":          {240, 230, 140, 255},
	"lavender":       {230, 230, 250, 255},
	"lawngreen":      {124, 252, 0, 255},
	"lightblue":      {173, 216, 230, 255},
	"lightgray":      {211, 211, 211, 255},
	"lightgreen":     {144, 238, 144, 255},
	"lightgrey":      {211, 211, 211, 255},
	"lightyellow":    {255, 255, 224, 255},
	"lime":           {0, 255, 0, 255},
	"limegreen":      {50, 205, 50, 255},
	"magenta":        {255, 0, 255, 255},
	"maroon":         {128, 0, 0, 255},
	"navy":           {0, 0, 128, 255},
	"olive":          {128, 128, 0, 255},
	"orange":         {255, 165, 0, 255},
	"orangered":      {255, 69, 0, 255},
	"orchid":         {218, 112, 214, 255},
	"pink":           {255, 192, 203, 255},
	"plum":           {221, 160, 221, 255},
	"purple":         {128, 0, 128, 255},
	"red":            {255, 0, 0, 255},
	"royalblue":      {65, 105, 225, 255},
	"salmon":         {250, 128, 114, 255},
	"seagreen":       {46, 139, 87, 255},
	"sienna":         {160, 82, 45, 255},
	"silver":         {192, 192, 192, 255},
	"skyblue":        {135, 206, 235, 255},
	"slategray":      {112, 128, 144, 255},
	"springgreen":    {0, 255, 127, 255},
	"steelblue":      {70, 130, 180, 255},
	"tan":            {210, 180, 140, 255},
	"teal":           {0, 128, 128, 255},
	"tomato":         {255, 99, 71, 255},
	"turquoise":      {64, 224, 208, 255},
	"violet":         {238, 130, 238, 255},
	"wheat":          {245, 222, 179, 255},
	"white":          {255, 255, 255, 255},
	"yellow":         {255, 255, 0, 255},
	"yellowgreen":    {154, 205, 50, 255},
}
