// Package ensemble provides the composite classifiers compared by
// ensemblecv: soft/hard voting over heterogeneous members, bootstrap
// aggregation of a single base estimator, second-order gradient boosting
// of shallow regression trees, and the random forest used as the
// auxiliary importance model for recursive feature elimination.
//
// Members are fitted as independent units on a bounded worker pool
// (core/parallel). Every random draw comes from a PCG stream derived from
// the ensemble seed and the member index, so fitted ensembles are
// reproducible regardless of scheduling.
package ensemble
