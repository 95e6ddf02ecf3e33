package dataset

import (
	"golang.org/x/exp/rand"
)

// Transform maps an image to an (possibly augmented) image. Random
// transforms draw from the given RNG so that a run is reproducible
// from its seed.
type Transform interface {
	Apply(Image, *rand.Rand) Image
}

// Compose applies a sequence of transforms in order.
type Compose []Transform

// Apply implements the Transform interface
func (c Compose) Apply(im Image, rng *rand.Rand) Image {
	for _, t := range c {
		im = t.Apply(im, rng)
	}
	return im
}

// TrainTransform returns the augmentation chain applied to training
// batches: random crop with padding, random horizontal flip, then
// per-channel normalization.
func TrainTransform(channels int) Transform {
	return Compose{
		RandomCrop{Pad: 4},
		RandomHorizontalFlip{P: 0.5},
		defaultNormalize(channels),
	}
}

// EvalTransform returns the deterministic chain applied during
// evaluation: per-channel normalization only.
func EvalTransform(channels int) Transform {
	return Compose{defaultNormalize(channels)}
}

// defaultNormalize centers pixels with mean and std 0.5 per channel.
func defaultNormalize(channels int) Normalize {
	mean := make([]float64, channels)
	std := make([]float64, channels)
	for i := range mean {
		mean[i] = 0.5
		std[i] = 0.5
	}
	return Normalize{Mean: mean, Std: std}
}

// RandomCrop zero-pads an image by Pad pixels on every side, then
// crops back to the original size at a random offset.
type RandomCrop struct {
	Pad int
}

// Apply implements the Transform interface
func (r RandomCrop) Apply(im Image, rng *rand.Rand) Image {
	if r.Pad <= 0 {
		return im
	}

	// Offsets into the padded image; (Pad, Pad) recovers the original.
	offY := rng.Intn(2*r.Pad + 1)
	offX := rng.Intn(2*r.Pad + 1)

	out := Image{
		Pixels:   make([]float64, len(im.Pixels)),
		Channels: im.Channels,
		Height:   im.Height,
		Width:    im.Width,
	}
	for c := 0; c < im.Channels; c++ {
		for y := 0; y < im.Height; y++ {
			srcY := y + offY - r.Pad
			if srcY < 0 || srcY >= im.Height {
				continue // Zero padding
			}
			for x := 0; x < im.Width; x++ {
				srcX := x + offX - r.Pad
				if srcX < 0 || srcX >= im.Width {
					continue
				}
				out.set(c, y, x, im.At(c, srcY, srcX))
			}
		}
	}
	return out
}

// RandomHorizontalFlip mirrors an image left-to-right with
// probability P.
type RandomHorizontalFlip struct {
	P float64
}

// Apply implements the Transform interface
func (r RandomHorizontalFlip) Apply(im Image, rng *rand.Rand) Image {
	if rng.Float64() >= r.P {
		return im
	}

	out := im.Clone()
	for c := 0; c < im.Channels; c++ {
		for y := 0; y < im.Height; y++ {
			for x := 0; x < im.Width; x++ {
				out.set(c, y, x, im.At(c, y, im.Width-1-x))
			}
		}
	}
	return out
}

// Normalize shifts and scales each channel: (pixel - Mean[c]) / Std[c].
type Normalize struct {
	Mean []float64
	Std  []float64
}

// Apply implements the Transform interface
func (n Normalize) Apply(im Image, rng *rand.Rand) Image {
	out := im.Clone()
	for c := 0; c < im.Channels; c++ {
		mean, std := n.Mean[c], n.Std[c]
		for y := 0; y < im.Height; y++ {
			for x := 0; x < im.Width; x++ {
				out.set(c, y, x, (im.At(c, y, x)-mean)/std)
			}
		}
	}
	return out
}
