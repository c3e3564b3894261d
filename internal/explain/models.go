// Package explain serves model-explanation views: SHAP-style per-feature
// distributions downsampled for plotting, a ranking of features by mean
// absolute SHAP value, and the static feature-importance map.
package explain

import (
	"regexp"
)

// Mode selects where a ranking is computed.
type Mode string

const (
	// ModeSync computes in the request goroutine and returns every feature.
	ModeSync Mode = "sync"
	// ModeOffloaded computes on the worker pool and returns the top features.
	ModeOffloaded Mode = "offloaded"
)

// Explanation file names, relative to a model directory.
const (
	FileShapValues    = "shap_values.json"
	FileFeatureNames  = "feature_names.json"
	FileFeatureValues = "feature_values.json"
	FileImportance    = "feature_importance.json"
)

// Ranking limits per mode.
const (
	SyncSampleCeiling      = 1000
	OffloadedSampleCeiling = 500
	OffloadedTopN          = 10
)

var modelNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidModelName reports whether name is safe to use in a source location.
func ValidModelName(name string) bool {
	return modelNamePattern.MatchString(name)
}

// Locations are the resolved source locations of the three ranking inputs.
type Locations struct {
	ShapValues    string `json:"shapValues"`
	FeatureNames  string `json:"featureNames"`
	FeatureValues string `json:"featureValues"`
}

// Inputs are the decoded ranking inputs. ShapValues and FeatureValues are
// sample-major and aligned with FeatureNames.
type Inputs struct {
	FeatureNames  []string
	ShapValues    [][]float64
	FeatureValues [][]float64
}

// Result is a computed feature ranking.
type Result struct {
	Model              string               `json:"model"`
	Mode               Mode                 `json:"mode"`
	SortedFeatureNames []string             `json:"sortedFeatureNames"`
	MeanAbsImportance  map[string]float64   `json:"meanAbsImportance"`
	ShapValues         map[string][]float64 `json:"shapValues"`
	FeatureValues      map[string][]float64 `json:"featureValues"`
	SampleCount        int                  `json:"sampleCount"`
	OriginalCount      int                  `json:"originalCount"`
}

// Importance is one entry of the static feature-importance map.
type Importance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}
