package explain

import (
	"context"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"churnboard/internal/explain/metrics"
)

// Load fetches the three ranking inputs concurrently and decodes them. The
// first fetch or decode failure cancels the rest.
func Load(ctx context.Context, f Fetcher, locs Locations, m *metrics.Metrics) (Inputs, error) {
	g, ctx := errgroup.WithContext(ctx)

	var rawShap, rawNames, rawValues []byte
	fetch := func(location string, dst *[]byte) func() error {
		return func() error {
			start := time.Now()
			raw, err := f.Fetch(ctx, location)
			m.ObserveFetch(path.Base(location), time.Since(start))
			if err != nil {
				return err
			}
			*dst = raw
			return nil
		}
	}
	g.Go(fetch(locs.ShapValues, &rawShap))
	g.Go(fetch(locs.FeatureNames, &rawNames))
	g.Go(fetch(locs.FeatureValues, &rawValues))

	if err := g.Wait(); err != nil {
		return Inputs{}, err
	}

	names, err := DecodeFeatureNames(rawNames)
	if err != nil {
		return Inputs{}, err
	}
	shap, err := DecodeSamples(rawShap, names)
	if err != nil {
		return Inputs{}, err
	}
	values, err := DecodeSamples(rawValues, names)
	if err != nil {
		return Inputs{}, err
	}
	return Inputs{FeatureNames: names, ShapValues: shap, FeatureValues: values}, nil
}
