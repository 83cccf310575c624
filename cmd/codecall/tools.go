package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/codecall/registry"
)

var (
	toolsSearch   string
	toolsDescribe string
	toolsLimit    int
	toolsJSON     bool
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List, search, or describe the tools available to code",
	Long: `List every tool path available to sandboxed code.

Examples:
  codecall tools
  codecall tools --search issues
  codecall tools --describe github.listIssues`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

func init() {
	toolsCmd.Flags().StringVar(&toolsSearch, "search", "", "search tools by keyword")
	toolsCmd.Flags().StringVar(&toolsDescribe, "describe", "", "show documentation for one tool path")
	toolsCmd.Flags().IntVar(&toolsLimit, "limit", 20, "maximum search results")
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "print descriptors as JSON")
}

func runTools(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	w := cmd.OutOrStdout()
	switch {
	case toolsDescribe != "":
		doc, err := s.reg.Describe(toolsDescribe, tooldoc.DetailFull)
		if err != nil {
			return err
		}
		return writeJSON(w, doc)
	case toolsSearch != "":
		results, err := s.reg.Search(toolsSearch, toolsLimit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, r := range results {
			fmt.Fprintf(tw, "%s\t%s\n", r.ID, r.ShortDescription)
		}
		return tw.Flush()
	case toolsJSON:
		return writeJSON(w, s.reg.Descriptors())
	default:
		return listTools(w, s.reg)
	}
}

func listTools(w io.Writer, reg *registry.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, path := range reg.Paths() {
		tool, _ := reg.Descriptor(path)
		fmt.Fprintf(tw, "%s\t%s\n", path, tool.Description)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
