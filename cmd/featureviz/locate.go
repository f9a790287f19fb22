package main

import (
	"context"
	"os"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/beetlebugorg/featureviz/internal/tilestore"
	"github.com/beetlebugorg/featureviz/pkg/featureviz"
)

var (
	locateTiles    string
	locateRequests string

	locateCmd = &cobra.Command{
		Use:   "locate",
		Short: "Resolve external reference requests against a tile directory",
		Long: `Reads a JSON list of external reference requests, such as the "unresolved"
list printed by render, and prints for each the tiles holding that feature.`,
		RunE: runLocate,
	}
)

func init() {
	locateCmd.Flags().StringVar(&locateTiles, "tiles", "", "directory of GeoJSON tiles")
	locateCmd.Flags().StringVar(&locateRequests, "requests", "", "JSON file with external reference requests")
	_ = locateCmd.MarkFlagRequired("tiles")
	_ = locateCmd.MarkFlagRequired("requests")
}

func runLocate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(locateRequests)
	if err != nil {
		return errors.Wrap(err, "read requests")
	}
	var requests []featureviz.ExternalReferenceRequest
	if err := json.Unmarshal(data, &requests); err != nil {
		return errors.Wrap(err, "parse requests")
	}

	opts := tilestore.DefaultLoadOptions()
	opts.Logger = logger
	store, err := tilestore.OpenDir(context.Background(), locateTiles, opts)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(locate(store, requests))
}
