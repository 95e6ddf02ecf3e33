package network

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// InitType describes the available weight initialization algorithms.
type InitType string

// Available weight initializers
const (
	GlorotU InitType = "GlorotU"
	GlorotN InitType = "GlorotN"
	HeU     InitType = "HeU"
	HeN     InitType = "HeN"
	Zeroes  InitType = "Zeroes"
)

// InitConfig describes a weight initialization scheme so that it can
// be JSON serialized into configuration files. Gain is ignored by the
// Zeroes initializer.
type InitConfig struct {
	Type InitType
	Gain float64
}

// NewGlorotU returns a Glorot uniform initialization configuration.
func NewGlorotU(gain float64) InitConfig {
	return InitConfig{Type: GlorotU, Gain: gain}
}

// NewHeN returns a He normal initialization configuration.
func NewHeN(gain float64) InitConfig {
	return InitConfig{Type: HeN, Gain: gain}
}

// Create returns the Gorgonia InitWFn that the InitConfig describes.
// The random initializers draw from an RNG seeded with seed, so the
// same seed reproduces the same weights.
func (c InitConfig) Create(seed uint64) (G.InitWFn, error) {
	rng := rand.New(rand.NewSource(seed))
	switch c.Type {
	case GlorotU:
		return uniformInit(rng, c.Gain, glorotDenom), nil
	case GlorotN:
		return normalInit(rng, c.Gain, glorotDenom), nil
	case HeU:
		return uniformInit(rng, c.Gain, heDenom), nil
	case HeN:
		return normalInit(rng, c.Gain, heDenom), nil
	case Zeroes:
		return G.Zeroes(), nil
	default:
		return nil, fmt.Errorf("create: unknown init type %q", c.Type)
	}
}

// String implements the fmt.Stringer interface
func (c InitConfig) String() string {
	return fmt.Sprintf("{%v InitWFn: gain %v}", c.Type, c.Gain)
}

// glorotDenom scales the draw by the full fan of a weight tensor,
// heDenom by its fan-in only.
func glorotDenom(fanIn, fanOut float64) float64 { return fanIn + fanOut }

func heDenom(fanIn, _ float64) float64 { return fanIn }

// uniformInit draws uniformly from [-limit, limit] with
// limit = gain × sqrt(6 / denom).
func uniformInit(rng *rand.Rand, gain float64,
	denom func(fanIn, fanOut float64) float64) G.InitWFn {
	return func(dt tensor.Dtype, s ...int) interface{} {
		fanIn, fanOut := fans(s)
		limit := gain * math.Sqrt(6.0/denom(fanIn, fanOut))
		return backing(rng, dt, s, func(r *rand.Rand) float64 {
			return (2*r.Float64() - 1) * limit
		})
	}
}

// normalInit draws from N(0, std²) with std = gain × sqrt(2 / denom).
func normalInit(rng *rand.Rand, gain float64,
	denom func(fanIn, fanOut float64) float64) G.InitWFn {
	return func(dt tensor.Dtype, s ...int) interface{} {
		fanIn, fanOut := fans(s)
		std := gain * math.Sqrt(2.0/denom(fanIn, fanOut))
		return backing(rng, dt, s, func(r *rand.Rand) float64 {
			return r.NormFloat64() * std
		})
	}
}

// fans returns the fan-in and fan-out of a weight shape.
func fans(s []int) (fanIn, fanOut float64) {
	switch len(s) {
	case 0:
		return 1, 1
	case 1:
		return float64(s[0]), float64(s[0])
	default:
		return float64(s[0]), float64(s[len(s)-1])
	}
}

// backing fills a backing slice of the requested dtype with draws
// from the given sampler.
func backing(rng *rand.Rand, dt tensor.Dtype, s []int,
	draw func(*rand.Rand) float64) interface{} {
	n := tensor.Shape(s).TotalSize()
	if dt == tensor.Float32 {
		data := make([]float32, n)
		for i := range data {
			data[i] = float32(draw(rng))
		}
		return data
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = draw(rng)
	}
	return data
}
