// Package render produces static snapshots of the map companions: the
// magnitude bar chart as HTML and the legend as an image.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"

	"github.com/woozymasta/quakemap/internal/quake"
)

const (
	legendPadding = 8
	legendGap     = 8

	// drawn larger, then scaled down for smooth edges
	supersample = 4
)

// LegendImage draws one dot per magnitude grade, sized like the legend,
// and encodes the result as lossless WebP.
func LegendImage(w io.Writer) error {
	return webp.Encode(w, legendRGBA(), &webp.Options{Lossless: true})
}

func legendRGBA() *image.RGBA {
	width, height := legendPadding*2, 0
	for i, g := range quake.Grades {
		d := int(math.Ceil(2 * g.Radius))
		width += d
		if i > 0 {
			width += legendGap
		}
		if d > height {
			height = d
		}
	}
	height += legendPadding * 2

	big := image.NewRGBA(image.Rect(0, 0, width*supersample, height*supersample))
	draw.Draw(big, big.Bounds(), image.Transparent, image.Point{}, draw.Src)

	x := float64(legendPadding)
	for _, g := range quake.Grades {
		d := 2 * g.Radius
		cx := (x + d/2) * supersample
		cy := float64(height) / 2 * supersample
		fillDot(big, cx, cy, g.Radius*supersample, supersample, g.Color)
		x += math.Ceil(d) + legendGap
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), big, big.Bounds(), draw.Over, nil)
	return dst
}

// fillDot paints a disk with a white outline of the given width.
func fillDot(img *image.RGBA, cx, cy, r, stroke float64, fill color.RGBA) {
	outline := color.RGBA{R: 255, G: 255, B: 255, A: 255}

	minX, maxX := int(math.Floor(cx-r)), int(math.Ceil(cx+r))
	minY, maxY := int(math.Floor(cy-r)), int(math.Ceil(cy+r))

	for py := minY; py <= maxY; py++ {
		for px := minX; px <= maxX; px++ {
			dx := float64(px) + 0.5 - cx
			dy := float64(py) + 0.5 - cy
			dist := math.Hypot(dx, dy)

			switch {
			case dist > r:
				continue
			case dist > r-stroke:
				img.SetRGBA(px, py, outline)
			default:
				img.SetRGBA(px, py, fill)
			}
		}
	}
}
