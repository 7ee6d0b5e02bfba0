// Package experiment wires the building blocks into the ensemble comparison
// study: feature selection with RFE, pipeline assembly per ensemble family,
// grid search, k-fold cross-validation and holdout evaluation.
//
// The exported functions are usable on their own:
//
//	ranking, err := experiment.FitSelector(X, y, ensemble.NewRandomForestClassifier(), 15)
//	p, err := experiment.BuildPipeline(scaler, ranking, experiment.KindVoting, nil)
//	records, err := experiment.CrossValidate(ctx, p, X, y, 10, 1, "f1")
//
// Run drives the whole study from a Config and returns the ranked
// comparison.
package experiment
