package intentstore

import "github.com/jonathan/model-builder/internal/types"

// Render-time defaults
const (
	DefaultCVFolds     = 5
	DefaultTestSize    = 0.2
	DefaultScaling     = types.ScalingStandard
	DefaultEncoding    = types.EncodingOneHot
	DefaultNumeric     = types.MissingMean
	DefaultCategorical = types.MissingMostFrequent
)

var defaultMetrics = map[types.TaskType]string{
	types.TaskRegression:     "r2",
	types.TaskClassification: "accuracy",
	types.TaskClustering:     "silhouette",
	types.TaskTimeseries:     "mae",
}

var modelCatalog = map[types.TaskType][]string{
	types.TaskRegression:     {"linear_regression", "ridge", "lasso", "random_forest", "gradient_boosting", "xgboost", "svr"},
	types.TaskClassification: {"logistic_regression", "random_forest", "gradient_boosting", "xgboost", "svm", "knn"},
	types.TaskClustering:     {"kmeans", "dbscan", "agglomerative"},
	types.TaskTimeseries:     {"arima", "prophet", "random_forest", "xgboost"},
}

// DefaultMetric returns the metric shown when a task type has none
func DefaultMetric(t types.TaskType) string {
	return defaultMetrics[t]
}

// ModelCatalog lists the algorithms a user can toggle for a task type.
// An unknown or empty task type lists every algorithm once.
func ModelCatalog(t types.TaskType) []string {
	if names, ok := modelCatalog[t]; ok {
		return append([]string(nil), names...)
	}
	seen := map[string]bool{}
	var all []string
	for _, tt := range []types.TaskType{types.TaskRegression, types.TaskClassification, types.TaskClustering, types.TaskTimeseries} {
		for _, n := range modelCatalog[tt] {
			if !seen[n] {
				seen[n] = true
				all = append(all, n)
			}
		}
	}
	return all
}

// WithDefaults returns a copy of in with unset fields filled for display.
// The stored Intent is left as extracted; defaults are never written back.
func WithDefaults(in *types.Intent) types.Intent {
	view := in.Clone()
	if view == nil {
		view = &types.Intent{}
	}

	if view.Task == nil {
		view.Task = &types.TaskSpec{}
	}
	if view.Task.Metric == "" {
		view.Task.Metric = DefaultMetric(view.Task.Type)
	}
	if view.Task.CVFolds == 0 {
		view.Task.CVFolds = DefaultCVFolds
	}
	if view.Task.TestSize == 0 {
		view.Task.TestSize = DefaultTestSize
	}

	if view.Preprocessing == nil {
		view.Preprocessing = &types.PreprocessingSpec{}
	}
	if view.Preprocessing.Scaling == "" {
		view.Preprocessing.Scaling = DefaultScaling
	}
	if view.Preprocessing.Encoding == "" {
		view.Preprocessing.Encoding = DefaultEncoding
	}
	if view.Preprocessing.MissingStrategy == nil {
		view.Preprocessing.MissingStrategy = &types.MissingStrategy{}
	}
	if view.Preprocessing.MissingStrategy.Numeric == "" {
		view.Preprocessing.MissingStrategy.Numeric = DefaultNumeric
	}
	if view.Preprocessing.MissingStrategy.Categorical == "" {
		view.Preprocessing.MissingStrategy.Categorical = DefaultCategorical
	}

	if view.SearchSpace == nil {
		view.SearchSpace = &types.SearchSpace{Models: []types.ModelSpec{}}
	}
	return *view
}
