package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/reproject-cli/internal/crs"
	"github.com/sells-group/reproject-cli/internal/dataset"
)

var zoneCRS string

var zoneCmd = &cobra.Command{
	Use:   "zone <file>...",
	Short: "Print the best-fitting UTM zone of each dataset",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cli"); err != nil {
			return err
		}
		opts, err := optionsFromConfig(cfg, zoneCRS)
		if err != nil {
			return err
		}
		return printZones(cmd.OutOrStdout(), args, opts)
	},
}

// printZones writes one "<file>\t<zone>\t<descriptor>" line per input.
func printZones(w io.Writer, paths []string, opts runOptions) error {
	r := opts.reprojector(nil)
	for _, p := range paths {
		ds, err := dataset.Load(p, opts.SourceCRS)
		if err != nil {
			return err
		}
		zone, err := r.IdentifyZone(ds)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", p, zone, crs.UTM(int(zone)))
	}
	return nil
}

func init() {
	zoneCmd.Flags().StringVar(&zoneCRS, "crs", "", "source CRS (EPSG:NNNN or PROJ string), overrides the file")
	rootCmd.AddCommand(zoneCmd)
}
