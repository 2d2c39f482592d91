// Package report exports the results of a cookbook run: a summary table,
// a full JSON dump, per-tube charts and confusion matrices, and the plan.
//
// Options come from the [report] section:
//
//	export_folder = results
//	file_formats  = csv, json
//	plots         = true
//	plot_color    = #1f77b4
package report

import (
	"image/color"
	"io"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/go-playground/colors.v1"

	"github.com/YuminosukeSato/simplify/cookbook"
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/pkg/log"
	"github.com/YuminosukeSato/simplify/settings"
)

// Section is the settings section read by the exporter.
const Section = "report"

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// DefaultColor is the bar colour of the charts.
const DefaultColor = "#1f77b4"

// Options controls what Export writes.
type Options struct {
	Folder    string
	Formats   []string
	Plots     bool
	PlotColor color.Color
}

// ReadOptions reads the [report] section of cfg.
func ReadOptions(cfg *settings.Settings) (Options, error) {
	sec := cfg.Section(Section)
	o := Options{Folder: sec.String("export_folder", "results")}

	o.Formats = sec.Strings("file_formats")
	if !sec.Has("file_formats") {
		o.Formats = []string{FormatCSV, FormatJSON}
	}
	for _, f := range o.Formats {
		if f != FormatCSV && f != FormatJSON {
			return o, errors.NewConfigurationError(Section, "file_formats", "unsupported format "+f)
		}
	}

	var err error
	if o.Plots, err = sec.Bool("plots", true); err != nil {
		return o, err
	}
	if o.PlotColor, err = ParseColor(sec.String("plot_color", DefaultColor)); err != nil {
		return o, errors.WrapConfigurationError(err, Section, "plot_color", "invalid colour")
	}
	return o, nil
}

// ParseColor accepts any hex, rgb() or rgba() colour string.
func ParseColor(s string) (color.Color, error) {
	c, err := colors.Parse(s)
	if err != nil {
		return nil, err
	}
	rgba := c.ToRGBA()
	return color.NRGBA{R: rgba.R, G: rgba.G, B: rgba.B, A: uint8(rgba.A * 255)}, nil
}

// Exporter writes run results to a folder.
type Exporter struct {
	opts   Options
	logger log.Logger
}

// New creates an exporter from the [report] section of cfg. folder, when
// not empty, overrides export_folder.
func New(cfg *settings.Settings, folder string) (*Exporter, error) {
	opts, err := ReadOptions(cfg)
	if err != nil {
		return nil, err
	}
	if folder != "" {
		opts.Folder = folder
	}
	return &Exporter{opts: opts, logger: log.GetLoggerWithName("report")}, nil
}

// NewWithOptions creates an exporter from explicit options.
func NewWithOptions(opts Options) *Exporter {
	if opts.PlotColor == nil {
		opts.PlotColor, _ = ParseColor(DefaultColor)
	}
	return &Exporter{opts: opts, logger: log.GetLoggerWithName("report")}
}

// Options returns the options in use.
func (e *Exporter) Options() Options { return e.opts }

// Export writes every configured artifact and returns the paths written.
func (e *Exporter) Export(cb *cookbook.Cookbook, results []*cookbook.TubeResult) ([]string, error) {
	if err := os.MkdirAll(e.opts.Folder, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", e.opts.Folder)
	}
	var written []string
	add := func(name string, write func(path string) error) error {
		path := filepath.Join(e.opts.Folder, name)
		if err := write(path); err != nil {
			return errors.Wrapf(err, "export %s", name)
		}
		written = append(written, path)
		return nil
	}

	if cb != nil {
		if err := add("plan.dot", func(path string) error {
			return create(path, cb.WritePlan)
		}); err != nil {
			return written, err
		}
	}

	if slices.Contains(e.opts.Formats, FormatCSV) {
		if err := add("summary.csv", func(path string) error {
			return create(path, func(w io.Writer) error { return WriteSummary(w, cb, results) })
		}); err != nil {
			return written, err
		}
		for _, r := range results {
			for _, cm := range confusionMatrices(r) {
				name := tubeFile(r, cm.technique+".csv")
				if err := add(name, func(path string) error {
					return create(path, func(w io.Writer) error { return writeConfusion(w, cm.matrix, classNames(r)) })
				}); err != nil {
					return written, err
				}
			}
		}
	}

	if slices.Contains(e.opts.Formats, FormatJSON) {
		if err := add("results.json", func(path string) error {
			return create(path, func(w io.Writer) error { return WriteJSON(w, results) })
		}); err != nil {
			return written, err
		}
	}

	if e.opts.Plots {
		for _, r := range results {
			for _, imp := range importances(r) {
				name := tubeFile(r, imp.technique+"_importances.png")
				if err := add(name, func(path string) error {
					return create(path, func(w io.Writer) error {
						return e.plotImportances(w, r.Recipe.Number, imp)
					})
				}); err != nil {
					return written, err
				}
			}
		}
	}

	e.logger.Info("results exported",
		log.PhaseKey, log.PhaseExport,
		"folder", e.opts.Folder,
		"files", len(written),
	)
	return written, nil
}

func create(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
