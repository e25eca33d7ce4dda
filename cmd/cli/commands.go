package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
)

func newExportCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the collection tree as JSON to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := s.service.ExportTree(cmd.Context())
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(tree)
		},
	}
}

func newImportCmd(s *session) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Recreate collections from an export file, keyed by slug",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open %s: %w", file, err)
			}
			defer f.Close()

			var entries []domain.ExportedCollection
			if err := json.NewDecoder(f).Decode(&entries); err != nil {
				return fmt.Errorf("decode %s: %w", file, err)
			}

			res, err := s.service.ImportTree(cmd.Context(), entries, nil)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d collections (%d skipped, %d items)\n", res.Created, res.Skipped, res.Items)
			for _, failure := range res.Failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s\n", failure)
			}
			if len(res.Failures) > 0 {
				return fmt.Errorf("%d entries failed", len(res.Failures))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file to import")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newRecountCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "recount",
		Short: "Recompute every collection's cached item count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed, err := s.service.RecomputeAllItemCounts(cmd.Context())
			if err != nil {
				return fmt.Errorf("recount failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %d item counts\n", changed)
			return nil
		},
	}
}
