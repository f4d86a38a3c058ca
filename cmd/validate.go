package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/reproject-cli/internal/dataset"
	"github.com/sells-group/reproject-cli/internal/utm"
)

var (
	validateCRS       string
	validateReproject bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "List features with invalid geometries without repairing them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cli"); err != nil {
			return err
		}
		opts, err := optionsFromConfig(cfg, validateCRS)
		if err != nil {
			return err
		}
		findings, err := checkFile(args[0], opts, validateReproject)
		if err != nil {
			return err
		}
		printFindings(cmd.OutOrStdout(), args[0], findings)
		return nil
	},
}

// checkFile checks every geometry of path, optionally after reprojecting
// into the dataset's zone.
func checkFile(path string, opts runOptions, reproject bool) ([]utm.Finding, error) {
	ds, err := dataset.Load(path, opts.SourceCRS)
	if err != nil {
		return nil, err
	}
	r := opts.reprojector(utm.Discard)
	if reproject {
		zone, err := r.IdentifyZone(ds)
		if err != nil {
			return nil, err
		}
		if ds, err = r.Reproject(ds, zone); err != nil {
			return nil, err
		}
	}
	return r.Check(ds)
}

func printFindings(w io.Writer, path string, findings []utm.Finding) {
	for _, f := range findings {
		fmt.Fprintf(w, "%s\t%s\n", f.ID, f.Err)
	}
	fmt.Fprintf(w, "%s: %d invalid geometries\n", path, len(findings))
}

func init() {
	validateCmd.Flags().StringVar(&validateCRS, "crs", "", "source CRS (EPSG:NNNN or PROJ string), overrides the file")
	validateCmd.Flags().BoolVar(&validateReproject, "reproject", false, "check after reprojecting into the dataset's UTM zone")
	rootCmd.AddCommand(validateCmd)
}
