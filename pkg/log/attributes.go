package log

// Model and operation context.
const (
	// ModelNameKey identifies the type of machine learning model.
	// Examples: "LinearRegression", "StandardScaler", "RandomForestClassifier"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "draft", "publish"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component or package is logging.
	// Examples: "cookbook", "chef", "critic", "report"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the run.
	PhaseKey = "ml.phase"
)

// Pipeline context.
const (
	// StepKey names the step being drafted or published ("scale", "explain").
	StepKey = "pipeline.step"

	// TechniqueKey names the technique being dispatched ("gini", "shap").
	TechniqueKey = "pipeline.technique"

	// TubeKey names the test tube (one combination of chef choices).
	TubeKey = "pipeline.tube"

	// LibraryKey names the library backing a technique reference.
	LibraryKey = "pipeline.library"

	// OutputsKey lists the output variable names a technique produced.
	OutputsKey = "pipeline.outputs"
)

// Data shape.
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// FoldsKey indicates the number of train/test folds.
	FoldsKey = "data.folds"
)

// Performance and metrics.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// ScoreKey records a metric value produced by a measure technique.
	ScoreKey = "metrics.score"

	// IterationKey records the current iteration number during iterative processes.
	IterationKey = "training.iteration"
)

// Error context.
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// StacktraceKey contains stack trace information for debugging.
	// Populated by Error when the first field is an error.
	StacktraceKey = "error.stacktrace"
)

// Configuration.
const (
	// HyperParamsKey contains model hyperparameters.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// SettingsPathKey records the settings file a run was loaded from.
	SettingsPathKey = "config.path"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationDraft     = "draft"
	OperationPublish   = "publish"

	PhaseChef   = "chef"
	PhaseCritic = "critic"
	PhaseExport = "export"

	ErrorUnknownTechnique      = "UNKNOWN_TECHNIQUE"
	ErrorConfiguration         = "CONFIGURATION"
	ErrorDependencyUnavailable = "DEPENDENCY_UNAVAILABLE"
	ErrorTechniqueFailed       = "TECHNIQUE_FAILED"
)
