package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rendis/placetap/internal/engine/storage"
	"github.com/rendis/placetap/internal/model"
)

var (
	exportDB     string
	exportOutput string
	exportFormat string
	exportRun    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a project database to CSV, JSON or GeoJSON",
	Example: `  placetap export --db ./projects/placetap_20260212_101500.db
  placetap export --db data.db --format geojson --output results.geojson`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportDB == "" {
			return fmt.Errorf("--db is required")
		}
		format, err := storage.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		store, err := storage.NewStore(exportDB)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer store.Close()

		var businesses []model.Business
		if exportRun != "" {
			businesses, err = store.ByRun(exportRun)
		} else {
			businesses, err = store.All()
		}
		if err != nil {
			return fmt.Errorf("reading businesses: %w", err)
		}

		out := exportOutput
		if out == "" {
			out = exportPath(exportDB, format)
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()

		if err := storage.Export(f, format, businesses); err != nil {
			return fmt.Errorf("writing %s: %w", format, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing output: %w", err)
		}

		fmt.Fprintf(os.Stderr, "Exported %d businesses to %s\n", len(businesses), out)
		return nil
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportDB, "db", "", "path to project .db file (required)")
	f.StringVarP(&exportOutput, "output", "o", "", "output file (default: next to the db)")
	f.StringVarP(&exportFormat, "format", "f", "csv", "export format: csv, json or geojson")
	f.StringVar(&exportRun, "run", "", "export only businesses first found by this run id")
}

// exportPath swaps the db extension for the format's.
func exportPath(dbPath string, f storage.Format) string {
	return strings.TrimSuffix(dbPath, filepath.Ext(dbPath)) + "." + f.Ext()
}
