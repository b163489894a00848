package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/boddenberg/ar-collections-go/internal/infra/observability"
	"github.com/boddenberg/ar-collections-go/internal/service"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var rankCompact bool

var rankCmd = &cobra.Command{
	Use:   "rank <file>",
	Short: "Rank an invoice CSV or XLSX file and print the priority response as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		content, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "read %s", path)
		}

		svc := service.NewCollections(observability.NewMetrics(), logger)
		resp, _, err := svc.Prioritize(cmd.Context(), filepath.Base(path), content)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		if !rankCompact {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(resp)
	},
}

func init() {
	rankCmd.Flags().BoolVar(&rankCompact, "compact", false, "print single-line JSON")
}
