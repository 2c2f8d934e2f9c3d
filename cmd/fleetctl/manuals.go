package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var manualsScope string

var manualsCmd = &cobra.Command{
	Use:   "manuals",
	Short: "List and manage ingested manuals",
}

var manualsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active manuals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		manuals, err := engine.ListManuals(cmd.Context(), manualsScope)
		if err != nil {
			return err
		}

		if len(manuals) == 0 {
			fmt.Println("no manuals")
			return nil
		}
		for _, m := range manuals {
			owner := m.OwnerID
			if owner == "" {
				owner = "shared"
			}
			fmt.Printf("%4d  %d %s %s  (%s)\n", m.ID, m.Year, m.Make, m.Model, owner)
		}
		return nil
	},
}

var manualsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a manual with its sections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid manual id %q", args[0])
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		details, err := engine.GetManual(cmd.Context(), id)
		if err != nil {
			return err
		}

		m := details.Manual
		fmt.Printf("manual %d: %d %s %s (%d sections, %d images)\n",
			m.ID, m.Year, m.Make, m.Model, len(details.Sections), details.ImageCount)
		for _, s := range details.Sections {
			fmt.Printf("  %s%s (pages %d-%d)\n",
				indent(s.Level), s.Name, s.FirstPage, s.LastPage())
		}
		return nil
	},
}

var manualsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Deactivate a manual",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid manual id %q", args[0])
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		if err := engine.DeleteManual(cmd.Context(), id, manualsScope); err != nil {
			return err
		}
		fmt.Printf("manual %d deactivated\n", id)
		return nil
	},
}

func indent(level int) string {
	if level < 2 {
		return ""
	}
	out := ""
	for i := 1; i < level; i++ {
		out += "  "
	}
	return out
}

func init() {
	manualsCmd.PersistentFlags().StringVar(&manualsScope, "scope", "", "owner scope")
	manualsCmd.AddCommand(manualsListCmd)
	manualsCmd.AddCommand(manualsShowCmd)
	manualsCmd.AddCommand(manualsRmCmd)
	rootCmd.AddCommand(manualsCmd)
}
