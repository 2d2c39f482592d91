// Command simplify runs every combination of the techniques selected in a
// settings file against a CSV data set and exports the results.
//
//	simplify run --settings simplify.ini --data train.csv --label target
//	simplify plan --settings simplify.ini > plan.dot
//	simplify techniques
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/simplify/cookbook"
	"github.com/YuminosukeSato/simplify/core/step"
	"github.com/YuminosukeSato/simplify/dataset"
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/pkg/log"
	"github.com/YuminosukeSato/simplify/report"
	"github.com/YuminosukeSato/simplify/settings"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run builds the command tree and executes args. Results go to out, logs
// to logW.
func run(ctx context.Context, out, logW io.Writer, args []string) error {
	root := newRootCommand(out, logW)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(logW)
	return root.ExecuteContext(ctx)
}

type globalFlags struct {
	settings string
	logLevel string
}

func newRootCommand(out, logW io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "simplify",
		Short:         "Compare preprocessing and model combinations from a settings file",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return log.SetupConsoleLogger(g.logLevel, logW)
		},
	}
	root.PersistentFlags().StringVarP(&g.settings, "settings", "s", "", "settings file (.ini or .hcl)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "debug, info, warn or error")

	root.AddCommand(newRunCommand(g, out), newPlanCommand(g, out), newTechniquesCommand(g, out))
	return root
}

func loadCookbook(g *globalFlags) (*cookbook.Cookbook, error) {
	if g.settings == "" {
		return nil, errors.New("--settings is required")
	}
	cfg, err := settings.Load(g.settings)
	if err != nil {
		return nil, err
	}
	return cookbook.New(cfg)
}

func newRunCommand(g *globalFlags, out io.Writer) *cobra.Command {
	var data, label, folder string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every test tube and export the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cb, err := loadCookbook(g)
			if err != nil {
				return err
			}
			ds, err := dataset.LoadCSV(data, label, cb.Task())
			if err != nil {
				return err
			}
			results, runErr := cb.Run(cmd.Context(), ds)
			if runErr != nil && results == nil {
				return runErr
			}

			exp, err := report.New(cb.Settings(), folder)
			if err != nil {
				return err
			}
			if _, err := exp.Export(cb, results); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			printBest(out, cb, results)
			return nil
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "CSV file with a header row")
	cmd.Flags().StringVarP(&label, "label", "l", "", "name of the target column")
	cmd.Flags().StringVarP(&folder, "out", "o", "", "export folder (overrides [report] export_folder)")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("label")
	return cmd
}

// printBest writes the winning recipe for the key metric.
func printBest(out io.Writer, cb *cookbook.Cookbook, results []*cookbook.TubeResult) {
	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	fmt.Fprintf(out, "%d tubes run, %d failed\n", len(results), failed)

	metric := cb.KeyMetric()
	if metric == "" {
		return
	}
	best, score, err := cookbook.Best(results, metric)
	if err != nil {
		fmt.Fprintln(out, err)
		return
	}
	fmt.Fprintf(out, "best tube %d by %s = %.4f\n", best.Recipe.Number, metric, score)
	for _, c := range best.Recipe.Choices {
		fmt.Fprintf(out, "  %s: %s\n", c.Step, c.Technique)
	}
}

func newPlanCommand(g *globalFlags, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Validate the settings and print the step graph in DOT format",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cb, err := loadCookbook(g)
			if err != nil {
				return err
			}
			return cb.WritePlan(out)
		},
	}
}

func newTechniquesCommand(g *globalFlags, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "techniques",
		Short: "List the techniques of every step; with --settings, mark the selected ones",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			selected := make(map[string]cookbook.Stage)
			var catalog map[string][]string
			if g.settings != "" {
				cb, err := loadCookbook(g)
				if err != nil {
					return err
				}
				for _, s := range cb.Stages() {
					selected[s.Name] = s
				}
				catalog = cb.Techniques()
			} else {
				all := make(map[string]step.Definition)
				for _, d := range cookbook.Definitions() {
					all[d.Name()] = d
				}
				catalog = cookbook.Catalog(all)
			}

			names := make([]string, 0, len(catalog))
			for name := range catalog {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				items := make([]string, len(catalog[name]))
				for i, t := range catalog[name] {
					items[i] = t
					if s, ok := selected[name]; ok && slices.Contains(s.Techniques, t) {
						items[i] = "*" + t
					}
				}
				fmt.Fprintf(out, "%s: %s\n", name, strings.Join(items, ", "))
			}
			return nil
		},
	}
}
