package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/schoolbot/internal/tools"
)

var toolsJSONFlag bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools offered to the model",
	RunE:  runTools,
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsJSONFlag, "json", false, "Print the JSON Schema declarations sent to the model")
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	registry := tools.NewRegistry()

	if toolsJSONFlag {
		data, err := json.MarshalIndent(registry.ToolDefs(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	for _, d := range registry.Declarations() {
		kind := "query"
		if d.Tool.Mutates() {
			kind = "mutation"
		}
		fmt.Printf("\033[1m%s\033[0m (%s)\n  %s\n", d.Name(), kind, d.Description)
		printParams(d.Params, "    ")
		fmt.Println()
	}
	return nil
}

func printParams(params []tools.Param, indent string) {
	for _, p := range params {
		req := ""
		if p.Required {
			req = " required"
		}
		extra := ""
		if len(p.Enum) > 0 {
			extra = " [" + strings.Join(p.Enum, "|") + "]"
		}
		fmt.Printf("%s%-18s %-8s%s%s  %s\n", indent, p.Name, p.Type, req, extra, p.Description)
		if len(p.Items) > 0 {
			printParams(p.Items, indent+"  ")
		}
	}
}
