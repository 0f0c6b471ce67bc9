package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"carprice/internal/cfg"
	"carprice/internal/dataset"
	"carprice/internal/features"
	"carprice/internal/metrics"
	"carprice/internal/ml"
	"carprice/internal/pipeline"
	"carprice/internal/storage"
	"carprice/internal/vehicle"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// errNoDataSource is returned by commands that need reference data when
// neither a dataset nor a snapshot is configured.
var errNoDataSource = errors.New("a dataset path or a snapshot path is required")

// referenceData is what startup loads before any prediction can run.
type referenceData struct {
	reference *dataset.Dataset
	stats     *dataset.Dataset // nil when not configured
	encoder   *features.TargetEncoder
}

func encoderParams(c cfg.Settings) features.EncoderParams {
	return features.EncoderParams{MinSamplesLeaf: c.MinSamplesLeaf, Smoothing: c.Smoothing}
}

func datasetOptions(c cfg.Settings, scale float64) dataset.Options {
	opt := dataset.DefaultOptions()
	opt.Delimiter = c.DelimiterRune()
	opt.PriceScale = scale
	return opt
}

// loadReferenceData prefers the snapshot when one is configured and present,
// and falls back to parsing the CSV files.
func loadReferenceData(ctx context.Context, c cfg.Settings, mw *metrics.MetricsWrapper) (*referenceData, error) {
	if c.SnapshotPath == "" && c.DatasetPath == "" {
		return nil, errNoDataSource
	}
	if c.SnapshotPath != "" {
		if _, err := os.Stat(c.SnapshotPath); err == nil {
			return loadFromSnapshot(c, mw)
		}
		if c.DatasetPath == "" {
			return nil, fmt.Errorf("snapshot %s not found and no dataset path configured", c.SnapshotPath)
		}
		log.Warn().Str("path", c.SnapshotPath).Msg("Snapshot not found, reading CSV files")
	}

	data, err := loadCSVs(ctx, c)
	if err != nil {
		return nil, err
	}
	if data.encoder, err = fitEncoder(data.reference, c, mw); err != nil {
		return nil, err
	}
	return data, nil
}

// loadCSVs reads the reference and statistics files concurrently.
func loadCSVs(ctx context.Context, c cfg.Settings) (*referenceData, error) {
	if c.DatasetPath == "" {
		return nil, errNoDataSource
	}
	data := &referenceData{}
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		ds, err := dataset.Load(c.DatasetPath, datasetOptions(c, c.DatasetScale))
		if err != nil {
			return fmt.Errorf("reference dataset: %w", err)
		}
		data.reference = ds
		return nil
	})
	if c.StatsPath != "" {
		g.Go(func() error {
			ds, err := dataset.Load(c.StatsPath, datasetOptions(c, c.StatsScale))
			if err != nil {
				return fmt.Errorf("statistics dataset: %w", err)
			}
			data.stats = ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

func loadFromSnapshot(c cfg.Settings, mw *metrics.MetricsWrapper) (*referenceData, error) {
	store, err := storage.Open(c.SnapshotPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	data := &referenceData{}
	if data.reference, err = store.Dataset(storage.ReferenceDataset); err != nil {
		return nil, err
	}
	data.stats, err = store.Dataset(storage.StatsDataset)
	if errors.Is(err, storage.ErrNotFound) {
		data.stats, err = nil, nil
	}
	if err != nil {
		return nil, err
	}

	enc, err := store.Encoder(data.reference.Fingerprint())
	switch {
	case err == nil && enc.Params == encoderParams(c):
		data.encoder = enc
		mw.EncoderFitted(0, enc.Rows)
		log.Info().
			Str("snapshot", c.SnapshotPath).
			Int("rows", enc.Rows).
			Time("fitted_at", enc.FittedAt).
			Msg("Loaded fitted encoder from snapshot")
	case err == nil:
		log.Warn().Msg("Snapshot encoder was fitted with other parameters, refitting")
		fallthrough
	default:
		if data.encoder, err = fitEncoder(data.reference, c, mw); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func fitEncoder(ds *dataset.Dataset, c cfg.Settings, mw *metrics.MetricsWrapper) (*features.TargetEncoder, error) {
	start := time.Now()
	enc, err := features.FitEncoder(ds, vehicle.DefaultSchema().ByRole(vehicle.Categorical), encoderParams(c))
	if err != nil {
		return nil, fmt.Errorf("fit encoder: %w", err)
	}
	mw.EncoderFitted(time.Since(start), enc.Rows)
	return enc, nil
}

// buildPipeline loads the model and wires transformer and predictor.
func buildPipeline(ctx context.Context, c cfg.Settings, enc *features.TargetEncoder, mw *metrics.MetricsWrapper) (*pipeline.Pipeline, error) {
	policy, err := features.ParseUnseenPolicy(c.UnseenPolicy)
	if err != nil {
		return nil, err
	}
	schema := vehicle.DefaultSchema()
	tr, err := features.NewTransformer(schema, enc, policy)
	if err != nil {
		return nil, err
	}

	model, err := ml.LoadModel(ctx, ml.ModelConfig{
		Kind:        strings.ToLower(c.ModelKind),
		Path:        c.ModelPath,
		URL:         c.ModelURL,
		Interpreter: c.Interpreter,
		Script:      c.ModelScript,
		Timeout:     c.ModelTimeout,
	}, schema)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	return pipeline.New(tr, ml.NewPredictor(model, mw), mw)
}
