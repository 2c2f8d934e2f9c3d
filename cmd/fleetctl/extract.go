package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dang-hang/fleet-wise-aide/geom"
)

var (
	extractX   int
	extractY   int
	extractW   int
	extractH   int
	extractDPI int
	extractOut string
)

var extractCmd = &cobra.Command{
	Use:   "extract <manual-id> <page>",
	Short: "Crop a percentage region from a manual page as PNG",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		manualID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid manual id %q", args[0])
		}
		page, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid page %q", args[1])
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		data, _, err := engine.ExtractRegion(cmd.Context(), manualID, page,
			geom.RegionPct{X: extractX, Y: extractY, W: extractW, H: extractH}, extractDPI)
		if err != nil {
			return err
		}

		if extractOut == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(extractOut, data, 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %d bytes to %s\n", len(data), extractOut)
		return nil
	},
}

func init() {
	extractCmd.Flags().IntVar(&extractX, "x", 0, "left edge, percent of page width")
	extractCmd.Flags().IntVar(&extractY, "y", 0, "top edge, percent of page height")
	extractCmd.Flags().IntVar(&extractW, "w", 100, "width, percent of page width")
	extractCmd.Flags().IntVar(&extractH, "h", 100, "height, percent of page height")
	extractCmd.Flags().IntVar(&extractDPI, "dpi", 0, "render resolution (default from config)")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "region.png", "output file, - for stdout")
	rootCmd.AddCommand(extractCmd)
}
