package dataset

import (
	"fmt"

	"github.com/fogleman/gg"
	"golang.org/x/exp/rand"
)

// cell spacing in the preview grid, in pixels
const previewGutter = 2

// SavePreview renders the first rows×cols samples of ds to a PNG
// grid, applying transform to each sample first when one is given.
// It is meant for eyeballing the augmentation pipeline; pixel values
// are clamped to [0, 1] before drawing.
func SavePreview(ds *Dataset, transform Transform, rows, cols int,
	seed uint64, path string) error {
	if ds.Len() == 0 {
		return fmt.Errorf("dataset: preview: empty dataset")
	}
	if rows < 1 || cols < 1 {
		return fmt.Errorf("dataset: preview: invalid grid %vx%v", rows,
			cols)
	}

	first := ds.Samples[0].Image
	cellW, cellH := first.Width, first.Height
	dc := gg.NewContext(
		cols*(cellW+previewGutter)+previewGutter,
		rows*(cellH+previewGutter)+previewGutter,
	)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	rng := rand.New(rand.NewSource(seed))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			idx := r*cols + c
			if idx >= ds.Len() {
				break
			}
			im := ds.Samples[idx].Image
			if transform != nil {
				im = transform.Apply(im, rng)
			}
			drawCell(dc, im,
				previewGutter+c*(cellW+previewGutter),
				previewGutter+r*(cellH+previewGutter))
		}
	}

	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("dataset: preview: save %v: %w", path, err)
	}
	return nil
}

// drawCell draws a single image with its top-left corner at (x0, y0).
func drawCell(dc *gg.Context, im Image, x0, y0 int) {
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			var r, g, b float64
			if im.Channels >= 3 {
				r = clamp01(im.At(0, y, x))
				g = clamp01(im.At(1, y, x))
				b = clamp01(im.At(2, y, x))
			} else {
				v := clamp01(im.At(0, y, x))
				r, g, b = v, v, v
			}
			dc.SetRGB(r, g, b)
			dc.SetPixel(x0+x, y0+y)
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
