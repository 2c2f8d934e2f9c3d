package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	fleetwise "github.com/dang-hang/fleet-wise-aide"
)

var (
	queryMaxSections int
	queryScope       string
	queryJSON        bool
)

func queryOptions() []fleetwise.QueryOption {
	var opts []fleetwise.QueryOption
	if queryMaxSections > 0 {
		opts = append(opts, fleetwise.WithMaxSections(queryMaxSections))
	}
	if queryScope != "" {
		opts = append(opts, fleetwise.WithScope(queryScope))
	}
	return opts
}

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Retrieve manual sections relevant to a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		result, err := engine.Query(cmd.Context(), strings.Join(args, " "), queryOptions()...)
		if err != nil {
			return err
		}

		if queryJSON {
			return printJSON(result)
		}

		fmt.Printf("vehicle: %s\n", result.Vehicle)
		if len(result.Topics) > 0 {
			fmt.Printf("topics:  %s\n", strings.Join(result.Topics, ", "))
		}
		if len(result.Sections) == 0 {
			fmt.Println("no matching sections")
			return nil
		}
		for _, s := range result.Sections {
			fmt.Printf("  [manual %d] %s (pages %d-%d)\n", s.ManualID, s.Name, s.FirstPage, s.LastPage)
		}
		if len(result.Images) > 0 {
			fmt.Printf("%d diagram(s) in the retained spans\n", len(result.Images))
		}
		return nil
	},
}

var answerCmd = &cobra.Command{
	Use:   "answer <question>",
	Short: "Answer a question from the ingested manuals",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		ans, err := engine.Answer(cmd.Context(), strings.Join(args, " "), queryOptions()...)
		if err != nil {
			return err
		}

		if queryJSON {
			return printJSON(ans)
		}

		fmt.Println(ans.Text)
		if len(ans.Retrieval.Sections) > 0 {
			fmt.Println("\nsources:")
			for _, s := range ans.Retrieval.Sections {
				fmt.Printf("  [manual %d] %s (pages %d-%d)\n", s.ManualID, s.Name, s.FirstPage, s.LastPage)
			}
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{queryCmd, answerCmd} {
		c.Flags().IntVar(&queryMaxSections, "max-sections", 0, "cap on retained sections")
		c.Flags().StringVar(&queryScope, "scope", "", "restrict to manuals owned by this caller")
		c.Flags().BoolVar(&queryJSON, "json", false, "output JSON")
	}
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(answerCmd)
}
