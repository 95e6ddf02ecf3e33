package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Extension of snapshot files
const Extension = ".bin"

// Entry describes one checkpoint file in a checkpoint directory.
type Entry struct {
	Name  string
	Index int
	Acc   float64
	Seed  uint64
	Tag   string
}

// FileName formats a checkpoint filename. The zero-padded index makes
// the lexicographic order of a directory listing equal to the save
// order.
func FileName(index int, acc float64, seed uint64, tag string) string {
	return fmt.Sprintf("%04d_acc%.4f_seed%04d_%s%s", index, acc, seed, tag,
		Extension)
}

// ParseName recovers the fields of a filename produced by FileName.
// The stem is split on the _acc and _seed markers; the tag runs from
// the first underscore after the seed digits to the extension, so
// tags may themselves contain underscores.
func ParseName(name string) (Entry, error) {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	if ext != Extension {
		return Entry{}, fmt.Errorf("checkpoint: %v: unexpected "+
			"extension %q", name, ext)
	}
	stem := base[:len(base)-len(ext)]

	accMark := strings.Index(stem, "_acc")
	seedMark := strings.Index(stem, "_seed")
	if accMark < 0 || seedMark < accMark+len("_acc") {
		return Entry{}, notACheckpoint(name)
	}
	seedAndTag := stem[seedMark+len("_seed"):]
	tagSep := strings.Index(seedAndTag, "_")
	if tagSep < 0 {
		return Entry{}, notACheckpoint(name)
	}

	index, err := strconv.Atoi(stem[:accMark])
	if err != nil {
		return Entry{}, notACheckpoint(name)
	}
	acc, err := strconv.ParseFloat(stem[accMark+len("_acc"):seedMark], 64)
	if err != nil {
		return Entry{}, notACheckpoint(name)
	}
	seed, err := strconv.ParseUint(seedAndTag[:tagSep], 10, 64)
	if err != nil {
		return Entry{}, notACheckpoint(name)
	}

	return Entry{
		Name:  base,
		Index: index,
		Acc:   acc,
		Seed:  seed,
		Tag:   seedAndTag[tagSep+1:],
	}, nil
}

func notACheckpoint(name string) error {
	return fmt.Errorf("checkpoint: %v: not a checkpoint filename", name)
}

// List returns the checkpoint entries in dir sorted by filename,
// which by construction is save order. Files whose names do not parse
// are ignored.
func List(dir string) ([]Entry, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list %v: %w", dir, err)
	}

	var entries []Entry
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		e, err := ParseName(f.Name())
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}
