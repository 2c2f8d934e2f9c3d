package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dang-hang/fleet-wise-aide/ingest"
)

var (
	ingestYear     int
	ingestMake     string
	ingestModel    string
	ingestUplifted bool
	ingestOwner    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <manual.pdf>",
	Short: "Ingest a manual PDF into the reference store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ingestMake == "" || ingestModel == "" {
			return fmt.Errorf("--make and --model are required")
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		id, err := engine.Ingest(cmd.Context(), args[0], ingest.Meta{
			Year:     ingestYear,
			Make:     ingestMake,
			Model:    ingestModel,
			Uplifted: ingestUplifted,
			Owner:    ingestOwner,
		})
		if err != nil {
			return err
		}

		fmt.Printf("ingested manual %d (%d %s %s)\n", id, ingestYear, ingestMake, ingestModel)
		return nil
	},
}

var manifestCmd = &cobra.Command{
	Use:   "manifest <manifest.xlsx>",
	Short: "Bulk-ingest manuals listed in an xlsx workbook",
	Long: `Reads an xlsx workbook whose first sheet lists manuals as
year | make | model | file | uplifted rows and ingests them in order.
Rows fail independently; the outcome of every row is reported.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		outcomes, err := engine.IngestManifest(cmd.Context(), args[0], ingestOwner)
		if err != nil {
			return err
		}

		failed := 0
		for _, o := range outcomes {
			if o.Error != "" {
				failed++
				fmt.Printf("FAIL %s: %s\n", o.File, o.Error)
				continue
			}
			fmt.Printf("ok   %s -> manual %d\n", o.File, o.ManualID)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d rows failed", failed, len(outcomes))
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestYear, "year", 0, "model year")
	ingestCmd.Flags().StringVar(&ingestMake, "make", "", "vehicle make")
	ingestCmd.Flags().StringVar(&ingestModel, "model", "", "vehicle model")
	ingestCmd.Flags().BoolVar(&ingestUplifted, "uplifted", false, "mark the manual as uplifted")
	ingestCmd.Flags().StringVar(&ingestOwner, "owner", "", "owner scope for the manual")
	ingestCmd.MarkFlagRequired("year")

	manifestCmd.Flags().StringVar(&ingestOwner, "owner", "", "owner scope for all ingested manuals")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(manifestCmd)
}
