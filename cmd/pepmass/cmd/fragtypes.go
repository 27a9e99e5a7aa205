package cmd

import (
	"fmt"
	"strings"

	"github.com/ChrisMcGann/pepmass/pkg/fragment"
	"github.com/spf13/cobra"
)

var (
	// Flags for frag-types command
	listTypes     []string
	listMaxCharge int
)

var fragTypesCmd = &cobra.Command{
	Use:   "frag-types",
	Short: "List supported fragment types and the columns they produce",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(listTypes) == 0 {
			fmt.Println("Supported fragment types:")
			for _, t := range fragment.FragTypes() {
				fmt.Printf("  %s\n", t)
			}
			return nil
		}

		for _, t := range listTypes {
			if _, err := fragment.ParseFragType(t); err != nil {
				return err
			}
		}
		fmt.Println(strings.Join(fragment.GetChargedFragTypes(listTypes, listMaxCharge), "\n"))
		return nil
	},
}

func init() {
	fragTypesCmd.Flags().StringSliceVar(&listTypes, "types", nil, "Fragment types to expand into charged columns")
	fragTypesCmd.Flags().IntVar(&listMaxCharge, "max-charge", 2, "Maximum fragment charge")
}
