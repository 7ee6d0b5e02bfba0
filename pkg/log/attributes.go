package log

// Model identity.
const (
	ModelNameKey   = "model.name"
	EstimatorIDKey = "estimator.id"
	OperationKey   = "ml.operation"
	ComponentKey   = "ml.component"
	PhaseKey       = "ml.phase"
	RunIDKey       = "run.id"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ClassesKey  = "data.classes"
)

// Performance and training progress.
const (
	DurationMsKey = "perf.duration_ms"
	AccuracyKey   = "metrics.accuracy"
	F1Key         = "metrics.f1"
	LossKey       = "metrics.loss"
	ScoreKey      = "metrics.score"
	MetricKey     = "metrics.name"
	IterationKey  = "training.iteration"
)

// Evaluation harness.
const (
	FoldKey       = "cv.fold"
	NFoldsKey     = "cv.n_folds"
	ParamsKey     = "search.params"
	TrialsKey     = "search.trials"
	MembersKey    = "ensemble.members"
	TreeDepthKey  = "ensemble.tree_depth"
	TreeLeavesKey = "ensemble.tree_leaves"
	SelectedKey   = "selection.selected"
	EliminatedKey = "selection.eliminated"
)

// Errors.
const (
	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"
)

// Configuration and execution.
const (
	HyperParamsKey  = "model.hyperparams"
	LearningRateKey = "hyperparams.learning_rate"
	RandomSeedKey   = "config.random_seed"
	WorkerIDKey     = "infra.worker_id"
	WorkersKey      = "infra.workers"
)

// Standard values for OperationKey and PhaseKey.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationSelect    = "select"
	OperationSearch    = "search"
	OperationEvaluate  = "evaluate"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"
)
