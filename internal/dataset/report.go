package dataset

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Report summarizes one reprojection run over a single input.
type Report struct {
	Source   string   `json:"source" yaml:"source"`
	Features int      `json:"features" yaml:"features"`
	Zone     int      `json:"zone" yaml:"zone"`
	CRS      string   `json:"crs" yaml:"crs"`
	Repaired []string `json:"repaired" yaml:"repaired"`
	Output   string   `json:"output,omitempty" yaml:"output,omitempty"`
	RunID    string   `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Rows     int64    `json:"rows,omitempty" yaml:"rows,omitempty"`
}

// WriteReport encodes reports as "json" or "yaml".
func WriteReport(w io.Writer, reports []Report, format string) error {
	for i := range reports {
		if reports[i].Repaired == nil {
			reports[i].Repaired = []string{}
		}
	}

	switch strings.ToLower(format) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return eris.Wrap(err, "dataset: write json report")
		}
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return eris.Wrap(err, "dataset: write yaml report")
		}
		if err := enc.Close(); err != nil {
			return eris.Wrap(err, "dataset: write yaml report")
		}
	default:
		return eris.Wrapf(ErrUnsupportedFormat, "dataset: report format %q", format)
	}
	return nil
}
