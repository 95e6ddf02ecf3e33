package dataset

import (
	"fmt"
	"sync"

	"golang.org/x/exp/rand"
)

// Load loads the named dataset ("cifar10", "cifar100" or "mnist")
// from root.
func Load(name, root string, train bool) (*Dataset, error) {
	switch name {
	case "cifar10":
		return LoadCIFAR10(root, train)
	case "cifar100":
		return LoadCIFAR100(root, train)
	case "mnist":
		return LoadMNIST(root, train)
	default:
		return nil, fmt.Errorf("dataset: unknown dataset %q", name)
	}
}

// Batch is one batch of transformed samples, flattened for the
// network: Inputs is batch×features row-major, Targets is the
// one-hot batch×classes matrix.
type Batch struct {
	Inputs  []float64
	Targets []float64
	Labels  []int

	// Index is the position of the Batch within its epoch
	Index int

	// Size is the number of samples; the final batch of an epoch may
	// be short unless DropLast is set.
	Size int
}

// Options configures a Loader.
type Options struct {
	BatchSize int
	Shuffle   bool

	// Workers is the number of goroutines assembling batches
	// concurrently. Values below 1 are treated as 1.
	Workers int

	// Seed drives the shuffle order and the random transforms. The
	// same seed replays the same epochs.
	Seed uint64

	// DropLast discards a final short batch, keeping every delivered
	// batch at exactly BatchSize samples.
	DropLast bool

	Transform Transform
}

// Loader delivers transformed batches of a Dataset, one epoch per
// call to Batches. Batches are assembled concurrently but always
// delivered in order.
type Loader struct {
	ds    *Dataset
	opts  Options
	epoch int

	stop     chan struct{}
	stopOnce *sync.Once
}

// NewLoader returns a new Loader over ds.
func NewLoader(ds *Dataset, opts Options) (*Loader, error) {
	if opts.BatchSize < 1 {
		return nil, fmt.Errorf("newloader: batch size must be positive, "+
			"got %v", opts.BatchSize)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Loader{ds: ds, opts: opts}, nil
}

// Len returns the number of batches in one epoch.
func (l *Loader) Len() int {
	n := l.ds.Len()
	if l.opts.DropLast {
		return n / l.opts.BatchSize
	}
	return (n + l.opts.BatchSize - 1) / l.opts.BatchSize
}

// BatchSize returns the loader's batch size
func (l *Loader) BatchSize() int {
	return l.opts.BatchSize
}

// Features returns the number of features per sample
func (l *Loader) Features() int {
	return l.ds.Features()
}

// Classes returns the number of classes in the underlying Dataset
func (l *Loader) Classes() int {
	return l.ds.NumClasses
}

// Batches runs one epoch. The returned channel delivers the epoch's
// batches in order and is closed when the epoch ends. Each call
// starts a fresh epoch with a fresh shuffle.
func (l *Loader) Batches() <-chan Batch {
	epoch := l.epoch
	l.epoch++

	stop := make(chan struct{})
	l.stop = stop
	l.stopOnce = new(sync.Once)

	out := make(chan Batch)
	nBatches := l.Len()
	if nBatches == 0 {
		close(out)
		return out
	}

	order := make([]int, l.ds.Len())
	for i := range order {
		order[i] = i
	}
	if l.opts.Shuffle {
		rng := rand.New(rand.NewSource(epochSeed(l.opts.Seed, epoch, 0)))
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	jobs := make(chan int)
	results := make([]chan Batch, nBatches)
	for i := range results {
		results[i] = make(chan Batch, 1)
	}

	for w := 0; w < l.opts.Workers; w++ {
		go func() {
			for b := range jobs {
				results[b] <- l.assemble(epoch, b, order)
			}
		}()
	}

	go func() {
		for b := 0; b < nBatches; b++ {
			jobs <- b
		}
		close(jobs)
	}()

	// Deliver in order regardless of which worker finished first. The
	// workers and the feeder always terminate on their own since each
	// result channel is buffered; only this forwarder can block on a
	// consumer that walked away, so it alone watches the stop channel.
	go func() {
		defer close(out)
		for b := 0; b < nBatches; b++ {
			select {
			case out <- <-results[b]:
			case <-stop:
				return
			}
		}
	}()

	return out
}

// Stop releases the current epoch's delivery goroutine without
// draining the channel. Safe to call more than once; a later call to
// Batches starts a fresh epoch as usual.
func (l *Loader) Stop() {
	if l.stopOnce == nil {
		return
	}
	l.stopOnce.Do(func() { close(l.stop) })
}

// assemble builds batch b of the given epoch. The transform RNG is
// derived from the seed, epoch and batch index, so the batch content
// does not depend on worker scheduling.
func (l *Loader) assemble(epoch, b int, order []int) Batch {
	start := b * l.opts.BatchSize
	end := start + l.opts.BatchSize
	if end > len(order) {
		end = len(order)
	}
	size := end - start

	features := l.ds.Features()
	classes := l.ds.NumClasses
	rng := rand.New(rand.NewSource(epochSeed(l.opts.Seed, epoch, b+1)))

	batch := Batch{
		Inputs:  make([]float64, size*features),
		Targets: make([]float64, size*classes),
		Labels:  make([]int, size),
		Index:   b,
		Size:    size,
	}
	for i := 0; i < size; i++ {
		sample := l.ds.Samples[order[start+i]]

		im := sample.Image
		if l.opts.Transform != nil {
			im = l.opts.Transform.Apply(im, rng)
		}
		copy(batch.Inputs[i*features:(i+1)*features], im.Pixels)

		batch.Labels[i] = sample.Label
		batch.Targets[i*classes+sample.Label] = 1.0
	}
	return batch
}

// epochSeed mixes the run seed with an epoch and batch counter.
func epochSeed(seed uint64, epoch, batch int) uint64 {
	const prime = 0x9e3779b97f4a7c15
	return seed + uint64(epoch+1)*prime + uint64(batch)*2654435761
}
