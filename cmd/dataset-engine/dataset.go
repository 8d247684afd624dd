// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pdiddy/dataset-engine/internal/catalog"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Inspect and manage datasets in the catalog (list, info, export, delete)",
	Long: `Dataset reads the local catalog written by assemble. Use subcommands to
list datasets, show a dataset's schema and samples, export it, or delete it.`,
}

// --- list subcommand ---

var datasetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List datasets with their sample counts",
	Args:  cobra.NoArgs,
	RunE:  runDatasetList,
}

func runDatasetList(cmd *cobra.Command, args []string) error {
	store, err := openCatalog(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	infos, err := store.ListDatasets(cmd.Context())
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No datasets found.")
		return nil
	}

	rows := make([][]string, len(infos))
	for i, info := range infos {
		rows[i] = []string{info.Name, strconv.Itoa(info.SampleCount), humanize.Time(info.CreatedAt)}
	}
	fmt.Println(renderTable([]string{"Name", "Samples", "Created"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft}))
	return nil
}

// --- info subcommand ---

var datasetInfoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Show a dataset's field schema and first samples",
	Args:  cobra.ExactArgs(1),
	RunE:  runDatasetInfo,
}

func runDatasetInfo(cmd *cobra.Command, args []string) error {
	store, err := openCatalog(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	ds, err := store.LoadDataset(ctx, args[0])
	if err != nil {
		return err
	}
	count, err := ds.Count(ctx)
	if err != nil {
		return err
	}
	schema, err := ds.Schema(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Dataset %s: %d samples\n\n", ds.Name(), count)
	fieldRows := make([][]string, len(schema))
	for i, f := range schema {
		dynamic := ""
		if f.Dynamic {
			dynamic = "yes"
		}
		fieldRows[i] = []string{f.Name, string(f.Type), dynamic}
	}
	fmt.Println(renderTable([]string{"Field", "Type", "Dynamic"}, fieldRows, nil))

	opts := queryOptsFromFlags(cmd)
	samples, err := ds.Samples(ctx, opts)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}

	sampleRows := make([][]string, len(samples))
	for i, s := range samples {
		size, dims := "", ""
		if s.Metadata != nil {
			size = humanize.Bytes(uint64(s.Metadata.SizeBytes))
			dims = fmt.Sprintf("%dx%dx%d", s.Metadata.Width, s.Metadata.Height, s.Metadata.NumChannels)
		}
		sampleRows[i] = []string{s.ID, s.Filepath, strings.Join(s.Tags, ","), dims, size}
	}
	fmt.Println()
	fmt.Println(renderTable([]string{"ID", "Filepath", "Tags", "Dimensions", "Size"}, sampleRows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight}))
	return nil
}

// --- export subcommand ---

var datasetExportCmd = &cobra.Command{
	Use:   "export <name>",
	Short: "Export a dataset's schema and samples to YAML or JSON",
	Long: `Export writes the dataset (or a filtered subset) to --output, or to stdout
when no output file is given. Supports the same filter flags as info.`,
	Args: cobra.ExactArgs(1),
	RunE: runDatasetExport,
}

func runDatasetExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	store, err := openCatalog(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	ds, err := store.LoadDataset(ctx, args[0])
	if err != nil {
		return err
	}

	w := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	opts := queryOptsFromFlags(cmd)
	switch format {
	case "yaml", "":
		err = ds.ExportYAML(ctx, w, opts)
	case "json":
		err = ds.ExportJSON(ctx, w, opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(os.Stderr, "Exported %s to %s\n", ds.Name(), output)
	}
	return nil
}

// --- delete subcommand ---

var datasetDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a dataset with its samples and schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DeleteDataset(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted dataset %s\n", args[0])
		return nil
	},
}

// --- shared helpers ---

func openCatalog(cmd *cobra.Command) (*catalog.Store, error) {
	if err := bindFlags(cmd, map[string]string{"catalog-dir": "catalog.catalog_dir"}); err != nil {
		return nil, err
	}
	cfg, err := pipelineConfig()
	if err != nil {
		return nil, err
	}
	return catalog.Open(cfg.Catalog, catalog.WithLogger(logger))
}

func queryOptsFromFlags(cmd *cobra.Command) catalog.QueryOptions {
	tag, _ := cmd.Flags().GetString("tag")
	field, _ := cmd.Flags().GetString("field")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	opts := catalog.QueryOptions{Tag: tag, MaxResults: maxResults}
	if name, value, ok := strings.Cut(field, "="); ok {
		opts.Field, opts.Value = name, value
	}
	return opts
}

func addQueryFlags(cmd *cobra.Command, maxResults int) {
	cmd.Flags().String("tag", "", "only samples with this tag")
	cmd.Flags().String("field", "", "only samples whose field matches, as name=value")
	cmd.Flags().Int("max-results", maxResults, "maximum number of samples (0 for the catalog default)")
}

func init() {
	datasetCmd.PersistentFlags().String("catalog-dir", "", "catalog directory (default data/catalog)")

	addQueryFlags(datasetInfoCmd, 10)
	addQueryFlags(datasetExportCmd, 0)
	datasetExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	datasetExportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")

	datasetCmd.AddCommand(datasetListCmd, datasetInfoCmd, datasetExportCmd, datasetDeleteCmd)
	rootCmd.AddCommand(datasetCmd)
}
