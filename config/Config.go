// Package config implements loading and validation of run
// configurations. A configuration file is a JSON object whose keys
// override the defaults; unknown keys are ignored.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Conventional per-run configuration filename.
const FileName = "config.json"

// Dataset names accepted by Config.Dataset.
const (
	CIFAR10  = "cifar10"
	CIFAR100 = "cifar100"
	MNIST    = "mnist"
)

// Config describes a single pretraining or snapshot-generation run.
type Config struct {
	// Data
	DatasetRoot string `mapstructure:"dataset_root"`
	Dataset     string `mapstructure:"dataset"`
	BatchSize   int    `mapstructure:"batch_size"`
	NumWorkers  int    `mapstructure:"num_workers"`

	// Optimization
	LearningRate     float64 `mapstructure:"learning_rate"`
	WeightDecay      float64 `mapstructure:"weight_decay"`
	Epochs           int     `mapstructure:"epochs"`
	SaveLearningRate float64 `mapstructure:"save_learning_rate"`
	FreezeEpochs     int     `mapstructure:"freeze_epochs"`

	// Snapshot loop
	TotalSaveNumber int `mapstructure:"total_save_number"`
	SaveInterval    int `mapstructure:"save_interval"`
	SkipBatches     int `mapstructure:"skip_batches"`
	MaxPasses       int `mapstructure:"max_passes"`

	// Model
	Hidden    []int    `mapstructure:"hidden"`
	Trainable []string `mapstructure:"trainable"`

	// Bookkeeping
	Tag                string `mapstructure:"tag"`
	Seed               uint64 `mapstructure:"seed"`
	CheckpointDir      string `mapstructure:"checkpoint_dir"`
	PretrainedPath     string `mapstructure:"pretrained_path"`
	EvalBeforeTraining bool   `mapstructure:"eval_before_training"`
	EvalAtSave         bool   `mapstructure:"eval_at_save"`
	RegistryPath       string `mapstructure:"registry_path"`
}

// Default returns the default run configuration. The Tag defaults to
// "default" and is replaced by the run directory's basename when the
// configuration is loaded with LoadDir.
func Default() Config {
	return Config{
		Dataset:            CIFAR10,
		BatchSize:          64,
		NumWorkers:         4,
		LearningRate:       0.05,
		WeightDecay:        5e-4,
		Epochs:             1,
		SaveLearningRate:   0.05,
		FreezeEpochs:       0,
		TotalSaveNumber:    300,
		SaveInterval:       1,
		SkipBatches:        2,
		MaxPasses:          6,
		Hidden:             []int{512, 256, 128},
		Trainable:          LastNormPatterns(3, 2),
		Tag:                "default",
		Seed:               40,
		CheckpointDir:      "checkpoint",
		PretrainedPath:     "pretrained.bin",
		EvalBeforeTraining: true,
	}
}

// LastNormPatterns returns the parameter-name patterns selecting the
// scale and shift of the last n of numHidden normalization layers.
// Hidden blocks are named hidden0, hidden1, ... in network order.
func LastNormPatterns(numHidden, n int) []string {
	if n > numHidden {
		n = numHidden
	}
	patterns := make([]string, 0, 2*n)
	for i := numHidden - n; i < numHidden; i++ {
		patterns = append(patterns,
			fmt.Sprintf("hidden%d.norm.weight", i),
			fmt.Sprintf("hidden%d.norm.bias", i),
		)
	}
	return patterns
}

// Load reads the JSON configuration file at path and merges it over
// the defaults. Values present in the file win over defaults.
func Load(path string) (Config, error) {
	return load(path, false)
}

// LoadDir loads the conventional config.json inside dir. A missing
// file is not an error: the defaults are returned with Tag set to the
// basename of dir, matching the behavior of a run directory that
// carries no overrides.
func LoadDir(dir string) (Config, error) {
	c, err := load(filepath.Join(dir, FileName), true)
	if err != nil {
		return Config{}, err
	}
	if c.Tag == "default" || c.Tag == "" {
		c.Tag = filepath.Base(dir)
	}
	return c, nil
}

func load(path string, tolerateMissing bool) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")

	_, err := os.Stat(path)
	switch {
	case os.IsNotExist(err) && tolerateMissing:
		// No per-run overrides; fall through to defaults.
	case err != nil:
		return Config{}, fmt.Errorf("config: stat %v: %w", path, err)
	default:
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %v: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal %v: %w", path, err)
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("dataset_root", d.DatasetRoot)
	v.SetDefault("dataset", d.Dataset)
	v.SetDefault("batch_size", d.BatchSize)
	v.SetDefault("num_workers", d.NumWorkers)
	v.SetDefault("learning_rate", d.LearningRate)
	v.SetDefault("weight_decay", d.WeightDecay)
	v.SetDefault("epochs", d.Epochs)
	v.SetDefault("save_learning_rate", d.SaveLearningRate)
	v.SetDefault("freeze_epochs", d.FreezeEpochs)
	v.SetDefault("total_save_number", d.TotalSaveNumber)
	v.SetDefault("save_interval", d.SaveInterval)
	v.SetDefault("skip_batches", d.SkipBatches)
	v.SetDefault("max_passes", d.MaxPasses)
	v.SetDefault("hidden", d.Hidden)
	v.SetDefault("trainable", d.Trainable)
	v.SetDefault("tag", d.Tag)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("checkpoint_dir", d.CheckpointDir)
	v.SetDefault("pretrained_path", d.PretrainedPath)
	v.SetDefault("eval_before_training", d.EvalBeforeTraining)
	v.SetDefault("eval_at_save", d.EvalAtSave)
	v.SetDefault("registry_path", d.RegistryPath)
}

// Validate checks that the configuration describes a runnable
// experiment.
func (c Config) Validate() error {
	switch c.Dataset {
	case CIFAR10, CIFAR100, MNIST:
	default:
		return fmt.Errorf("config: unknown dataset %q", c.Dataset)
	}
	if c.DatasetRoot == "" {
		return fmt.Errorf("config: dataset_root is required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("config: batch_size must be positive, got %v",
			c.BatchSize)
	}
	if c.Epochs < 1 {
		return fmt.Errorf("config: epochs must be positive, got %v", c.Epochs)
	}
	if c.TotalSaveNumber < 1 {
		return fmt.Errorf("config: total_save_number must be at least 1, "+
			"got %v", c.TotalSaveNumber)
	}
	if c.SaveInterval < 1 {
		return fmt.Errorf("config: save_interval must be at least 1, got %v",
			c.SaveInterval)
	}
	if c.MaxPasses < 1 {
		return fmt.Errorf("config: max_passes must be positive, got %v",
			c.MaxPasses)
	}
	if len(c.Hidden) == 0 {
		return fmt.Errorf("config: at least one hidden layer is required")
	}
	for _, h := range c.Hidden {
		if h < 1 {
			return fmt.Errorf("config: hidden sizes must be positive, "+
				"got %v", c.Hidden)
		}
	}
	if len(c.Trainable) == 0 {
		return fmt.Errorf("config: trainable patterns must not be empty")
	}
	return nil
}
