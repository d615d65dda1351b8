package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/RaffaelBild/gta-benchmark/internal/anonymizer"
	"github.com/RaffaelBild/gta-benchmark/internal/benchmark"
	"github.com/RaffaelBild/gta-benchmark/pkg/errors"
)

// Sink receives the complete result table after every row.
type Sink interface {
	Write(ctx context.Context, snapshot *Snapshot) error
}

// Recorder observes engine invocations and table growth.
type Recorder interface {
	RecordRun(experiment, privacyModel string, duration time.Duration, err error)
	SetResultRows(experiment string, rows int)
}

// Options wires an experiment to its collaborators.
type Options struct {
	Engine  anonymizer.Engine
	Setup   *benchmark.Setup
	Sinks   []Sink
	Metrics Recorder
	Logger  *logrus.Logger

	// Repetitions per run: 0 or 1 runs once, -1 uses the dataset default,
	// larger values repeat and report mean and standard deviation.
	Repetitions int
}

// NormalizePayout scales a raw payout by the number of records and the
// publisher benefit, so payouts compare across datasets.
func NormalizePayout(payout float64, records int, benefit float64) float64 {
	return payout / (float64(records) * benefit)
}

type runner struct {
	opts        Options
	experiment  string
	dataset     benchmark.Dataset
	repetitions int
	table       *Table
	logger      *logrus.Entry
}

func newRunner(opts Options, experiment string, dataset benchmark.Dataset, runColumns, measures []string) (*runner, error) {
	if opts.Engine == nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "engine is required")
	}
	if opts.Setup == nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "setup is required")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	repetitions := opts.Repetitions
	switch {
	case repetitions == -1:
		repetitions = benchmark.Repetitions(dataset)
	case repetitions < -1:
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "repetitions must be -1 or greater").
			WithContext("repetitions", repetitions)
	case repetitions == 0:
		repetitions = 1
	}

	var analyzers []Analyzer
	if repetitions > 1 {
		analyzers = []Analyzer{AnalyzerMean, AnalyzerStd}
	}

	name := fmt.Sprintf("%s-%s", dataset, experiment)
	return &runner{
		opts:        opts,
		experiment:  experiment,
		dataset:     dataset,
		repetitions: repetitions,
		table:       NewTable(name, runColumns, measures, analyzers...),
		logger: opts.Logger.WithFields(logrus.Fields{
			"experiment": experiment,
			"dataset":    dataset.String(),
		}),
	}, nil
}

// run adds one row and fills it by calling analyze once per repetition, each
// time with freshly loaded data. The table is flushed afterwards.
func (r *runner) run(ctx context.Context, labels []interface{}, analyze func(data *anonymizer.Data) error) error {
	if err := r.table.AddRun(labels...); err != nil {
		return err
	}
	for i := 0; i < r.repetitions; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := r.opts.Setup.LoadData(r.dataset)
		if err != nil {
			return err
		}
		if err := analyze(data); err != nil {
			return err
		}
	}
	return r.flush(ctx)
}

func (r *runner) flush(ctx context.Context) error {
	snapshot := r.table.Snapshot()
	for _, sink := range r.opts.Sinks {
		if err := sink.Write(ctx, snapshot); err != nil {
			return err
		}
	}
	if r.opts.Metrics != nil {
		r.opts.Metrics.SetResultRows(r.experiment, r.table.Rows())
	}
	return nil
}

// evaluate anonymizes data under config and extracts one scalar from the
// optimum. The data handle is released once the scalar has been read.
func (r *runner) evaluate(ctx context.Context, data *anonymizer.Data, config anonymizer.Config,
	extract func(optimum *anonymizer.Transformation, records int) (float64, error)) (float64, error) {
	if err := config.Validate(); err != nil {
		return 0, err
	}

	handle := data.Handle()
	start := time.Now()
	result, err := r.opts.Engine.Anonymize(ctx, data, config)
	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordRun(r.experiment, config.PrivacyModelNames(), time.Since(start), err)
	}

	var value float64
	if err == nil {
		var optimum *anonymizer.Transformation
		optimum, err = result.GlobalOptimum()
		if err == nil {
			value, err = extract(optimum, handle.NumRows())
		}
	}

	if relErr := handle.Release(); relErr != nil && err == nil {
		err = relErr
	}
	if err != nil {
		return 0, err
	}
	return value, nil
}

// relativeQuality reads the relative quality of the optimum.
func relativeQuality(optimum *anonymizer.Transformation, _ int) (float64, error) {
	return optimum.HighestScore().RelativeQuality, nil
}

// normalizedPayout reads the payout, the first entry of the score breakdown.
func normalizedPayout(benefit float64) func(*anonymizer.Transformation, int) (float64, error) {
	return func(optimum *anonymizer.Transformation, records int) (float64, error) {
		payout, err := optimum.HighestScore().MetadataAt(0)
		if err != nil {
			return 0, err
		}
		return NormalizePayout(payout, records, benefit), nil
	}
}

// record evaluates config and adds the result to measure.
func (r *runner) record(ctx context.Context, measure string, data *anonymizer.Data, config anonymizer.Config,
	extract func(*anonymizer.Transformation, int) (float64, error)) error {
	value, err := r.evaluate(ctx, data, config, extract)
	if err != nil {
		return err
	}
	return r.table.AddValue(measure, value)
}
