package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CIFAR image geometry
const (
	cifarChannels = 3
	cifarSide     = 32
	cifarPixels   = cifarChannels * cifarSide * cifarSide
)

var cifar10Classes = []string{
	"airplane", "automobile", "bird", "cat", "deer",
	"dog", "frog", "horse", "ship", "truck",
}

// LoadCIFAR10 loads the CIFAR-10 binary batches from
// <root>/cifar-10-batches-bin. Each record is one label byte followed
// by 3072 pixel bytes in CHW order.
func LoadCIFAR10(root string, train bool) (*Dataset, error) {
	dir := filepath.Join(root, "cifar-10-batches-bin")

	var files []string
	if train {
		for i := 1; i <= 5; i++ {
			files = append(files, fmt.Sprintf("data_batch_%d.bin", i))
		}
	} else {
		files = []string{"test_batch.bin"}
	}

	ds := &Dataset{
		Name:       "cifar10",
		NumClasses: 10,
		ClassNames: cifar10Classes,
	}
	for _, name := range files {
		path := filepath.Join(dir, name)
		samples, err := readCIFARFile(path, 1, 0)
		if err != nil {
			return nil, fmt.Errorf("dataset: cifar10 %v: %w", name, err)
		}
		ds.Samples = append(ds.Samples, samples...)
	}
	return ds, nil
}

// LoadCIFAR100 loads the CIFAR-100 binary files from
// <root>/cifar-100-binary. Each record carries a coarse and a fine
// label byte; the fine label is used.
func LoadCIFAR100(root string, train bool) (*Dataset, error) {
	dir := filepath.Join(root, "cifar-100-binary")
	name := "test.bin"
	if train {
		name = "train.bin"
	}

	samples, err := readCIFARFile(filepath.Join(dir, name), 2, 1)
	if err != nil {
		return nil, fmt.Errorf("dataset: cifar100 %v: %w", name, err)
	}
	return &Dataset{
		Name:       "cifar100",
		Samples:    samples,
		NumClasses: 100,
	}, nil
}

// readCIFARFile reads records of labelBytes label bytes plus 3072
// pixel bytes, keeping the label at index labelIdx. Pixels are scaled
// to [0, 1].
func readCIFARFile(path string, labelBytes, labelIdx int) ([]Sample,
	error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := bufio.NewReader(file)
	record := make([]byte, labelBytes+cifarPixels)

	var samples []Sample
	for {
		_, err := io.ReadFull(r, record)
		if err == io.EOF {
			return samples, nil
		}
		if err != nil {
			return nil, fmt.Errorf("record %v: %w", len(samples), err)
		}

		pixels := make([]float64, cifarPixels)
		for i, b := range record[labelBytes:] {
			pixels[i] = float64(b) / 255.0
		}
		samples = append(samples, Sample{
			Image: Image{
				Pixels:   pixels,
				Channels: cifarChannels,
				Height:   cifarSide,
				Width:    cifarSide,
			},
			Label: int(record[labelIdx]),
		})
	}
}
