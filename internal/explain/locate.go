package explain

import (
	"net/url"
	"strings"
)

// Resolve joins base, model and file into one location. base may be an
// http(s) URL or an s3://bucket/prefix URI.
func Resolve(base, model, file string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(model) + "/" + file
}

// Locate resolves the three ranking inputs of model under base.
func Locate(base, model string) Locations {
	return Locations{
		ShapValues:    Resolve(base, model, FileShapValues),
		FeatureNames:  Resolve(base, model, FileFeatureNames),
		FeatureValues: Resolve(base, model, FileFeatureValues),
	}
}
