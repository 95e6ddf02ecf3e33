// Package dataset implements image dataset loading, the augmentation
// transforms applied during training, and a concurrent batch loader.
package dataset

// Image holds CHW pixel data in [0, 1] (before normalization).
type Image struct {
	Pixels   []float64
	Channels int
	Height   int
	Width    int
}

// Clone returns a deep copy of the Image
func (im Image) Clone() Image {
	pixels := make([]float64, len(im.Pixels))
	copy(pixels, im.Pixels)
	return Image{
		Pixels:   pixels,
		Channels: im.Channels,
		Height:   im.Height,
		Width:    im.Width,
	}
}

// At returns the pixel value of channel c at row y, column x.
func (im Image) At(c, y, x int) float64 {
	return im.Pixels[c*im.Height*im.Width+y*im.Width+x]
}

// set sets the pixel value of channel c at row y, column x.
func (im Image) set(c, y, x int, v float64) {
	im.Pixels[c*im.Height*im.Width+y*im.Width+x] = v
}

// Sample is a labelled image
type Sample struct {
	Image Image
	Label int
}

// Dataset is an in-memory labelled image dataset
type Dataset struct {
	Name       string
	Samples    []Sample
	NumClasses int
	ClassNames []string
}

// Len returns the number of samples in the Dataset
func (d *Dataset) Len() int {
	return len(d.Samples)
}

// Features returns the number of pixels in a single sample
func (d *Dataset) Features() int {
	if d.Len() == 0 {
		return 0
	}
	im := d.Samples[0].Image
	return im.Channels * im.Height * im.Width
}
