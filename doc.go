// Package simplify compares preprocessing and modelling choices for tabular
// data, driven entirely by a settings file.
//
// A run is made of steps. Chef steps prepare the data and fit a model
// (scale, encode, mixer, split, sample, reduce, model, search); critic steps evaluate the
// fitted model (predict, estimate, explain, measure, report). Every step
// offers several techniques. Each chef step runs one of its selected
// techniques per test tube, and the tubes are the cross product of those
// selections; critic steps run all of their selected techniques in every
// tube.
//
// # Quick Start
//
// A minimal settings file:
//
//	[general]
//	model_type = classifier
//	seed = 42
//	n_jobs = 4
//
//	[chef]
//	chef_steps = encode, scale, split, model
//	encode_techniques = one_hot
//	scale_techniques = standard, minmax
//	split_techniques = stratified
//	model_techniques = logit, random_forest
//
//	[critic]
//	critic_steps = explain, measure, report
//	explain_techniques = shap
//	measure_techniques = accuracy, roc_auc
//	report_techniques = confusion
//
// Run it from the command line:
//
//	simplify run --settings simplify.ini --data train.csv --label target --out results
//
// or from Go:
//
//	cfg, err := settings.Load("simplify.ini")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cb, err := cookbook.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	data, err := dataset.LoadCSV("train.csv", "target", cb.Task())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	results, err := cb.Run(context.Background(), data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	best, score, _ := cookbook.Best(results, "roc_auc")
//
// # Packages
//
//   - settings: INI and HCL settings with typed values and search ranges
//   - dataset: tabular data, CSV loading and fold splitters
//   - core/registry: technique registries with direct and deferred references
//   - core/step: the step lifecycle, tube context and result sets
//   - chef, critic: the built-in steps
//   - cookbook: plan validation, tube generation and concurrent runs
//   - report: CSV, JSON, PNG and DOT exports
//   - metrics, preprocessing, linear, sklearn/...: the wrapped estimators
//
// # Optional Backends
//
// Techniques such as search "bayes", explain "skater" and the "xgboost" and
// "lightgbm" models are deferred: they resolve by name but only run once a
// package provides them with registry.Provide. Until then they fail with a
// DependencyUnavailableError, which tolerate_failures records instead of
// aborting the run.
package simplify
