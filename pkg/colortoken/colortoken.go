// Package colortoken converts RGB channel triples into the color tokens used
// to draw annotation overlays.
//
// A token is either "#RRGGBB" (uppercase hex, two digits per channel) or the
// sentinel "transparent", which marks the absence of a valid color. No other
// shapes are produced.
package colortoken

import (
	"fmt"
	"hash/fnv"
	"image/color"
	"strconv"
)

// Transparent is returned for channel arrays that are not RGB triples.
const Transparent = "transparent"

// RGBArrayToHex encodes three channel values as "#RRGGBB". Any other number
// of channels yields Transparent. Each channel is masked to its low byte, so
// 256 encodes as "00" and -1 as "FF".
//
//	RGBArrayToHex([]int{255, 0, 255}) == "#FF00FF"
//	RGBArrayToHex([]int{255, 0}) == "transparent"
func RGBArrayToHex(channels []int) string {
	if len(channels) != 3 {
		return Transparent
	}
	return fmt.Sprintf("#%02X%02X%02X", uint8(channels[0]), uint8(channels[1]), uint8(channels[2]))
}

// HexToRGB decodes a "#RRGGBB" token. Lowercase digits are accepted.
// It reports false for Transparent and anything malformed.
func HexToRGB(token string) ([3]uint8, bool) {
	var rgb [3]uint8
	if len(token) != 7 || token[0] != '#' {
		return rgb, false
	}
	for i := range rgb {
		v, err := strconv.ParseUint(token[1+2*i:3+2*i], 16, 8)
		if err != nil {
			return rgb, false
		}
		rgb[i] = uint8(v)
	}
	return rgb, true
}

// ToNRGBA converts a token into a draw color with the given alpha.
func ToNRGBA(token string, alpha uint8) (color.NRGBA, bool) {
	rgb, ok := HexToRGB(token)
	if !ok {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: alpha}, true
}

// Palette maps annotation classes to RGB triples. Classes without an entry get
// a stable generated color, so the same class always renders the same way.
type Palette struct {
	colors map[string][]int
}

// NewPalette creates a palette from a class -> channels table. The table is copied.
func NewPalette(colors map[string][]int) *Palette {
	p := &Palette{colors: make(map[string][]int, len(colors))}
	for class, channels := range colors {
		p.colors[class] = append([]int(nil), channels...)
	}
	return p
}

// Channels returns the configured channels for class, or a generated triple.
func (p *Palette) Channels(class string) []int {
	if p != nil {
		if channels, ok := p.colors[class]; ok {
			return append([]int(nil), channels...)
		}
	}
	return generatedChannels(class)
}

// Token returns the color token for class.
func (p *Palette) Token(class string) string {
	return RGBArrayToHex(p.Channels(class))
}

// generatedChannels derives a triple from the class name. Channels stay in
// 64..255 so overlays are visible on dark images.
func generatedChannels(class string) []int {
	h := fnv.New32a()
	h.Write([]byte(class))
	sum := h.Sum32()
	return []int{
		64 + int(sum&0xFF)%192,
		64 + int((sum>>8)&0xFF)%192,
		64 + int((sum>>16)&0xFF)%192,
	}
}
