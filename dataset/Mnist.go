package dataset

import (
	"compress/gzip"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MNIST IDX-gzip files and the SHA-256 digests of the canonical
// distribution, verified before use.
const (
	mnistTrainImages = "train-images-idx3-ubyte.gz"
	mnistTrainLabels = "train-labels-idx1-ubyte.gz"
	mnistTestImages  = "t10k-images-idx3-ubyte.gz"
	mnistTestLabels  = "t10k-labels-idx1-ubyte.gz"

	mnistTrainImagesDigest = "440fcabf73cc546fa21475e81ea370265605f56be210a4024d2ca8f203523609"
	mnistTrainLabelsDigest = "3552534a0a558bbed6aed32b30c495cca23d567ec52cac8be1a0730e8010255c"
	mnistTestImagesDigest  = "8d422c7b0a1c1c79245a5bcf07fe86e33eeafee792b84584aec276f5a2dbc4e6"
	mnistTestLabelsDigest  = "f7ae60f92e00ec6debd23a6088c31dbd2371eca3ffa0defaefb259924204aec6"
)

// IDX magic numbers
const (
	idxImagesMagic = 2051
	idxLabelsMagic = 2049
)

// LoadMNIST loads the MNIST IDX-gzip files from root, verifying each
// file's SHA-256 digest before parsing it.
func LoadMNIST(root string, train bool) (*Dataset, error) {
	imagesName, labelsName := mnistTestImages, mnistTestLabels
	imagesDigest, labelsDigest := mnistTestImagesDigest, mnistTestLabelsDigest
	if train {
		imagesName, labelsName = mnistTrainImages, mnistTrainLabels
		imagesDigest, labelsDigest = mnistTrainImagesDigest,
			mnistTrainLabelsDigest
	}

	imagesPath := filepath.Join(root, imagesName)
	if err := VerifyDigest(imagesPath, imagesDigest); err != nil {
		return nil, fmt.Errorf("dataset: mnist: %w", err)
	}
	labelsPath := filepath.Join(root, labelsName)
	if err := VerifyDigest(labelsPath, labelsDigest); err != nil {
		return nil, fmt.Errorf("dataset: mnist: %w", err)
	}

	images, height, width, err := readIDXImages(imagesPath)
	if err != nil {
		return nil, fmt.Errorf("dataset: mnist %v: %w", imagesName, err)
	}
	labels, err := readIDXLabels(labelsPath)
	if err != nil {
		return nil, fmt.Errorf("dataset: mnist %v: %w", labelsName, err)
	}
	if len(images) != len(labels) {
		return nil, fmt.Errorf("dataset: mnist: %v images but %v labels",
			len(images), len(labels))
	}

	ds := &Dataset{Name: "mnist", NumClasses: 10}
	for i := range images {
		ds.Samples = append(ds.Samples, Sample{
			Image: Image{
				Pixels:   images[i],
				Channels: 1,
				Height:   height,
				Width:    width,
			},
			Label: int(labels[i]),
		})
	}
	return ds, nil
}

// VerifyDigest checks that the file at path has the given hex-encoded
// SHA-256 digest.
func VerifyDigest(path, wantDigest string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return fmt.Errorf("digest %v: %w", path, err)
	}
	have := fmt.Sprintf("%x", h.Sum(nil))
	if have != wantDigest {
		return fmt.Errorf("digest mismatch for %v\n\twant(%v)\n\thave(%v)",
			path, wantDigest, have)
	}
	return nil
}

// readIDXImages parses a gzipped IDX3 image file into per-image pixel
// slices scaled to [0, 1].
func readIDXImages(path string) ([][]float64, int, int, error) {
	r, closeAll, err := openGzip(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer closeAll()

	var header [4]uint32
	for i := range header {
		if err := binary.Read(r, binary.BigEndian, &header[i]); err != nil {
			return nil, 0, 0, fmt.Errorf("header: %w", err)
		}
	}
	if header[0] != idxImagesMagic {
		return nil, 0, 0, fmt.Errorf("bad magic %v", header[0])
	}
	count, height, width := int(header[1]), int(header[2]), int(header[3])

	raw := make([]byte, height*width)
	images := make([][]float64, 0, count)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, 0, 0, fmt.Errorf("image %v: %w", i, err)
		}
		pixels := make([]float64, len(raw))
		for j, b := range raw {
			pixels[j] = float64(b) / 255.0
		}
		images = append(images, pixels)
	}
	return images, height, width, nil
}

// readIDXLabels parses a gzipped IDX1 label file.
func readIDXLabels(path string) ([]byte, error) {
	r, closeAll, err := openGzip(path)
	if err != nil {
		return nil, err
	}
	defer closeAll()

	var header [2]uint32
	for i := range header {
		if err := binary.Read(r, binary.BigEndian, &header[i]); err != nil {
			return nil, fmt.Errorf("header: %w", err)
		}
	}
	if header[0] != idxLabelsMagic {
		return nil, fmt.Errorf("bad magic %v", header[0])
	}

	labels := make([]byte, int(header[1]))
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("labels: %w", err)
	}
	return labels, nil
}

func openGzip(path string) (io.Reader, func(), error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	gz, err := gzip.NewReader(file)
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("gzip %v: %w", path, err)
	}
	return gz, func() {
		gz.Close()
		file.Close()
	}, nil
}
