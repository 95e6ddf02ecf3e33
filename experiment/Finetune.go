package experiment

import (
	"fmt"
	"log"
	"os"

	"github.com/wangqiang102938/pdiff/checkpoint"
	"github.com/wangqiang102938/pdiff/config"
	"github.com/wangqiang102938/pdiff/dataset"
	"github.com/wangqiang102938/pdiff/network"
	"github.com/wangqiang102938/pdiff/registry"
	"github.com/wangqiang102938/pdiff/solver"
	"github.com/wangqiang102938/pdiff/utils/progress"
)

// FinetuneResult summarizes a snapshot-generation run.
type FinetuneResult struct {
	// Saved is the number of checkpoint files written, equal to the
	// quota unless MaxPasses ran out of save points first.
	Saved int

	// Passes is the number of passes over the training set that ran,
	// the final partial pass included.
	Passes int

	// InitialEval holds the pre-training evaluation when the
	// configuration asked for one.
	InitialEval *Result

	RunID   string
	History *History
	Net     *network.Classifier
}

// Finetune loads the pretrained classifier, restricts training to the
// parameters matching cfg.Trainable, and trains with a cosine-annealed
// AdamW while saving a snapshot of the trainable set at every save
// point until the quota is reached.
func Finetune(cfg config.Config) (*FinetuneResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pretrained, err := network.ReadFile(cfg.PretrainedPath)
	if err != nil {
		return nil, fmt.Errorf("finetune: %v", err)
	}
	net, err := pretrained.CloneWithBatch(cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("finetune: %v", err)
	}

	trainable := net.LearnablesMatching(cfg.Trainable)
	if len(trainable) == 0 {
		return nil, fmt.Errorf("finetune: no learnables match %v",
			cfg.Trainable)
	}
	names := make([]string, len(trainable))
	for i, learnable := range trainable {
		names[i] = learnable.Name
	}

	trainLoader, evalLoader, err := buildLoaders(cfg)
	if err != nil {
		return nil, err
	}
	if trainLoader.Len() == 0 {
		return nil, fmt.Errorf("finetune: train split smaller than one "+
			"batch of %v", cfg.BatchSize)
	}
	defer trainLoader.Stop()

	tr, err := newTrainer(net, trainable, cfg.LearningRate,
		cfg.WeightDecay)
	if err != nil {
		return nil, fmt.Errorf("finetune: %v", err)
	}
	defer tr.close()

	sched, err := solver.NewCosineAnnealing(cfg.LearningRate,
		cfg.SaveLearningRate, trainLoader.Len())
	if err != nil {
		return nil, fmt.Errorf("finetune: %v", err)
	}

	writer := &checkpoint.Writer{
		Dir:         cfg.CheckpointDir,
		Interval:    cfg.SaveInterval,
		SkipBatches: cfg.SkipBatches,
		Quota:       cfg.TotalSaveNumber,
		Seed:        cfg.Seed,
		Tag:         cfg.Tag,
	}

	result := &FinetuneResult{History: new(History), Net: net}

	var reg *registry.Registry
	if cfg.RegistryPath != "" {
		reg, err = registry.Open(cfg.RegistryPath)
		if err != nil {
			return nil, fmt.Errorf("finetune: %v", err)
		}
		defer reg.Close()

		result.RunID, err = reg.CreateRun(registry.RunMeta{
			Tag:          cfg.Tag,
			Dataset:      cfg.Dataset,
			Seed:         cfg.Seed,
			LearningRate: cfg.LearningRate,
			Quota:        cfg.TotalSaveNumber,
		})
		if err != nil {
			return nil, fmt.Errorf("finetune: %v", err)
		}
	}

	log.Printf("finetune: %v", EnvReport())
	log.Printf("finetune: training %v of %v learnables: %v",
		len(trainable), len(net.NamedLearnables()), names)

	if cfg.EvalBeforeTraining {
		eval, err := evaluateClone(net, evalLoader)
		if err != nil {
			return nil, fmt.Errorf("finetune: initial eval: %v", err)
		}
		result.InitialEval = &eval
		log.Printf("finetune: initial eval | loss %.4f | acc %.4f",
			eval.Loss, eval.Accuracy)
	}

	step := 0
	batchesPerPass := trainLoader.Len()
	for pass := 0; pass < cfg.MaxPasses && !writer.Exhausted(); pass++ {
		result.Passes++
		bar := progress.New(progressWidth, batchesPerPass)

		batches := trainLoader.Batches()
		for batch := range batches {
			loss, err := tr.step(batch)
			if err != nil {
				return nil, fmt.Errorf("finetune: pass %v: %v", pass, err)
			}
			if err := sched.Step(tr.solver); err != nil {
				return nil, fmt.Errorf("finetune: pass %v: %v", pass, err)
			}
			result.History.Track(step, loss)
			step++

			bar.Increment()
			bar.SetPostfix("loss: %.4f | saved: %v/%v", loss,
				writer.Saved(), cfg.TotalSaveNumber)
			bar.Display()

			if writer.Due(batch.Index, batchesPerPass) {
				if err := save(cfg, writer, net, names, evalLoader, reg,
					result.RunID); err != nil {
					return nil, fmt.Errorf("finetune: pass %v: %v", pass,
						err)
				}
			}
			if writer.Exhausted() {
				trainLoader.Stop()
				break
			}
		}
		bar.Done()
	}

	result.Saved = writer.Saved()
	log.Printf("finetune: wrote %v of %v checkpoints in %v passes",
		result.Saved, cfg.TotalSaveNumber, result.Passes)
	return result, nil
}

// save takes a snapshot of the trainable set and writes it as the
// next checkpoint file, recording it in the registry when one is
// configured. The recorded accuracy is 1.0 unless the configuration
// asks for a real evaluation at every save.
func save(cfg config.Config, writer *checkpoint.Writer,
	net *network.Classifier, names []string,
	evalLoader *dataset.Loader, reg *registry.Registry,
	runID string) error {
	acc := 1.0
	if cfg.EvalAtSave {
		eval, err := evaluateClone(net, evalLoader)
		if err != nil {
			return err
		}
		acc = eval.Accuracy
	}

	snap, err := checkpoint.Take(net, names)
	if err != nil {
		return err
	}
	index := writer.Saved()
	path, err := writer.Save(snap, acc)
	if err != nil {
		return err
	}

	if reg != nil {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		return reg.RecordCheckpoint(registry.CheckpointRecord{
			RunID: runID,
			Index: index,
			Acc:   acc,
			Seed:  cfg.Seed,
			Tag:   cfg.Tag,
			Path:  path,
			Bytes: info.Size(),
		})
	}
	return nil
}
