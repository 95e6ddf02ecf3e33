package experiment

import (
	"fmt"
	"log"

	"github.com/wangqiang102938/pdiff/config"
	"github.com/wangqiang102938/pdiff/dataset"
	"github.com/wangqiang102938/pdiff/network"
	"github.com/wangqiang102938/pdiff/utils/progress"
)

// progressWidth is the character width of training progress bars.
const progressWidth = 40

// PretrainResult summarizes a pretraining run.
type PretrainResult struct {
	Epochs    int
	FinalLoss float64
	Eval      Result
	Net       *network.Classifier
}

// Pretrain trains a full classifier from scratch for cfg.Epochs
// epochs and writes the resulting model to cfg.PretrainedPath. This
// produces the backbone that Finetune consumes.
func Pretrain(cfg config.Config) (*PretrainResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	trainLoader, evalLoader, err := buildLoaders(cfg)
	if err != nil {
		return nil, err
	}
	if trainLoader.Len() == 0 {
		return nil, fmt.Errorf("pretrain: train split smaller than one "+
			"batch of %v", cfg.BatchSize)
	}
	defer trainLoader.Stop()

	net, err := network.NewClassifier(trainLoader.Features(),
		trainLoader.Classes(), cfg.BatchSize, cfg.Hidden,
		network.NewHeN(1.0), cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("pretrain: %v", err)
	}

	tr, err := newTrainer(net, net.NamedLearnables(), cfg.LearningRate,
		cfg.WeightDecay)
	if err != nil {
		return nil, fmt.Errorf("pretrain: %v", err)
	}
	defer tr.close()

	log.Printf("pretrain: %v", EnvReport())
	log.Printf("pretrain: %v train batches of %v on %v", trainLoader.Len(),
		cfg.BatchSize, cfg.Dataset)

	result := &PretrainResult{Epochs: cfg.Epochs, Net: net}
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		bar := progress.New(progressWidth, trainLoader.Len())
		for batch := range trainLoader.Batches() {
			loss, err := tr.step(batch)
			if err != nil {
				return nil, fmt.Errorf("pretrain: epoch %v: %v", epoch,
					err)
			}
			result.FinalLoss = loss

			bar.Increment()
			bar.SetPostfix("loss: %.4f", loss)
			bar.Display()
		}
		bar.Done()

		eval, err := evaluateClone(net, evalLoader)
		if err != nil {
			return nil, fmt.Errorf("pretrain: epoch %v: %v", epoch, err)
		}
		result.Eval = eval
		log.Printf("pretrain: epoch %v | loss %.4f | eval loss %.4f | "+
			"eval acc %.4f", epoch, result.FinalLoss, eval.Loss,
			eval.Accuracy)
	}

	if err := net.WriteFile(cfg.PretrainedPath); err != nil {
		return nil, fmt.Errorf("pretrain: %v", err)
	}
	log.Printf("pretrain: wrote %v", cfg.PretrainedPath)
	return result, nil
}

// buildLoaders loads the configured dataset and wraps it in a
// shuffled, augmented training loader and a deterministic eval
// loader. The training loader drops a final short batch so every
// training step sees a full batch.
func buildLoaders(cfg config.Config) (*dataset.Loader, *dataset.Loader,
	error) {
	trainDS, err := dataset.Load(cfg.Dataset, cfg.DatasetRoot, true)
	if err != nil {
		return nil, nil, err
	}
	evalDS, err := dataset.Load(cfg.Dataset, cfg.DatasetRoot, false)
	if err != nil {
		return nil, nil, err
	}
	if trainDS.Len() == 0 {
		return nil, nil, fmt.Errorf("experiment: %v train split is empty",
			cfg.Dataset)
	}

	channels := trainDS.Samples[0].Image.Channels
	trainLoader, err := dataset.NewLoader(trainDS, dataset.Options{
		BatchSize: cfg.BatchSize,
		Shuffle:   true,
		Workers:   cfg.NumWorkers,
		Seed:      cfg.Seed,
		DropLast:  true,
		Transform: dataset.TrainTransform(channels),
	})
	if err != nil {
		return nil, nil, err
	}
	evalLoader, err := dataset.NewLoader(evalDS, dataset.Options{
		BatchSize: cfg.BatchSize,
		Workers:   cfg.NumWorkers,
		Seed:      cfg.Seed,
		Transform: dataset.EvalTransform(channels),
	})
	if err != nil {
		return nil, nil, err
	}
	return trainLoader, evalLoader, nil
}

// evaluateClone evaluates the current weights of net on loader using
// a fresh clone, leaving net's training graph untouched.
func evaluateClone(net *network.Classifier,
	loader *dataset.Loader) (Result, error) {
	clone, err := net.CloneWithBatch(loader.BatchSize())
	if err != nil {
		return Result{}, err
	}
	return Evaluate(clone, loader)
}
