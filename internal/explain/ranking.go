package explain

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// Downsample keeps every stride-th sample starting at index 0, where
// stride = floor(n/ceiling), once n exceeds ceiling. The result is a
// deterministic function of the input.
func Downsample[T any](samples []T, ceiling int) []T {
	n := len(samples)
	if ceiling <= 0 || n <= ceiling {
		return samples
	}
	stride := n / ceiling
	out := make([]T, 0, n/stride+1)
	for i := 0; i < n; i += stride {
		out = append(out, samples[i])
	}
	return out
}

// Rank downsamples in to ceiling samples, orders features by mean absolute
// SHAP value (ties keep input order) and keeps the first topN features when
// topN > 0.
func Rank(model string, mode Mode, in Inputs, ceiling, topN int) (*Result, error) {
	if len(in.FeatureNames) == 0 {
		return nil, fmt.Errorf("feature names are empty")
	}
	if len(in.ShapValues) == 0 {
		return nil, fmt.Errorf("shap values are empty")
	}
	if len(in.FeatureValues) != len(in.ShapValues) {
		return nil, fmt.Errorf("feature values have %d samples, shap values have %d", len(in.FeatureValues), len(in.ShapValues))
	}
	width := len(in.FeatureNames)
	for i := range in.ShapValues {
		if len(in.ShapValues[i]) != width {
			return nil, fmt.Errorf("shap sample %d has %d values, want %d", i, len(in.ShapValues[i]), width)
		}
		if len(in.FeatureValues[i]) != width {
			return nil, fmt.Errorf("feature sample %d has %d values, want %d", i, len(in.FeatureValues[i]), width)
		}
	}

	shap := Downsample(in.ShapValues, ceiling)
	values := Downsample(in.FeatureValues, ceiling)

	means := make([]float64, width)
	for _, sample := range shap {
		for j, v := range sample {
			means[j] += math.Abs(v)
		}
	}
	for j := range means {
		means[j] /= float64(len(shap))
	}

	order := make([]int, width)
	for j := range order {
		order[j] = j
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(means[b], means[a]) })
	if topN > 0 && len(order) > topN {
		order = order[:topN]
	}

	res := &Result{
		Model:              model,
		Mode:               mode,
		SortedFeatureNames: make([]string, 0, len(order)),
		MeanAbsImportance:  make(map[string]float64, len(order)),
		ShapValues:         make(map[string][]float64, len(order)),
		FeatureValues:      make(map[string][]float64, len(order)),
		SampleCount:        len(shap),
		OriginalCount:      len(in.ShapValues),
	}
	for _, j := range order {
		name := in.FeatureNames[j]
		res.SortedFeatureNames = append(res.SortedFeatureNames, name)
		res.MeanAbsImportance[name] = means[j]
		res.ShapValues[name] = column(shap, j)
		res.FeatureValues[name] = column(values, j)
	}
	return res, nil
}

func column(samples [][]float64, j int) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s[j]
	}
	return out
}

// DecodeFeatureNames parses a JSON array of feature names.
func DecodeFeatureNames(raw []byte) ([]string, error) {
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("decode feature names: %w", err)
	}
	return names, nil
}

// DecodeSamples parses a JSON array of samples. Each sample is either an
// array aligned with names or an object keyed by feature name; missing keys
// and nulls read as 0.
func DecodeSamples(raw []byte, names []string) ([][]float64, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}
	out := make([][]float64, 0, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '{' {
			var keyed map[string]*float64
			if err := json.Unmarshal(item, &keyed); err != nil {
				return nil, fmt.Errorf("decode sample %d: %w", i, err)
			}
			row := make([]float64, len(names))
			for j, name := range names {
				if v := keyed[name]; v != nil {
					row[j] = *v
				}
			}
			out = append(out, row)
			continue
		}
		var arr []*float64
		if err := json.Unmarshal(item, &arr); err != nil {
			return nil, fmt.Errorf("decode sample %d: %w", i, err)
		}
		row := make([]float64, len(arr))
		for j, v := range arr {
			if v != nil {
				row[j] = *v
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// DecodeImportance parses the feature-importance map and orders it by
// descending importance, then name.
func DecodeImportance(raw []byte) ([]Importance, error) {
	var m map[string]float64
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode feature importance: %w", err)
	}
	out := make([]Importance, 0, len(m))
	for feature, v := range m {
		out = append(out, Importance{Feature: feature, Importance: v})
	}
	slices.SortFunc(out, func(a, b Importance) int {
		if c := cmp.Compare(b.Importance, a.Importance); c != 0 {
			return c
		}
		return cmp.Compare(a.Feature, b.Feature)
	})
	return out, nil
}
