// Package ensemblecv compares ensemble classifiers for tumor diagnosis from
// cell-nucleus measurements (malignant = 1, benign = 0) by cross-validated
// F1 score.
//
// # Layout
//
//   - dataset: the immutable labelled feature table, WDBC CSV loader and a
//     synthetic generator
//   - preprocessing: standard and min-max scalers
//   - sklearn/feature_selection: recursive feature elimination and feature
//     rankings
//   - sklearn/linear_model, sklearn/tree, sklearn/neighbors, sklearn/svm:
//     base estimators
//   - sklearn/ensemble: soft voting, bagging, gradient boosting and the
//     random forest used to rank features
//   - sklearn/model_selection: k-fold splitters, cross-validation and grid
//     search
//   - pipeline: scaler → selector → estimator chains
//   - metrics: confusion matrix, F1, ROC and DET curves, reports
//   - report: ranked comparison tables, CSV output and plots
//   - experiment: the study entry points and configuration
//   - cmd/ensemblecv: the command-line driver
//
// # Quick Start
//
//	ds, err := dataset.LoadWDBCFile("data.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	comparison, err := experiment.Run(ctx, experiment.DefaultConfig(), ds)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(comparison)
//
// # Errors
//
// Errors carry stack traces from github.com/cockroachdb/errors. The kinds a
// caller usually inspects are InvalidConfigurationError (raised at
// construction, never silently defaulted), IncompatibleMemberError,
// DegenerateFoldError and UndefinedMetricError; see pkg/errors.
//
// # Concurrency
//
// Ensemble members, cross-validation folds and grid search units run on a
// bounded worker pool. Every randomized step takes an explicit seed, so
// results do not depend on scheduling.
package ensemblecv
