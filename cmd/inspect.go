package cmd

import (
	"fmt"

	"github.com/Beastly713/parsefuzz/pkg/corpus"
	"github.com/Beastly713/parsefuzz/pkg/fault"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var (
	faultKind    string
	faultMessage string
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

var decodeCmd = &cobra.Command{
	Use:   "decode [path]",
	Short: "Show the testcase a buffer decodes to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newHarness()
		if err != nil {
			return err
		}
		a, err := corpus.Load(args[0])
		if err != nil {
			return err
		}
		tc, err := h.Decode(a.Data)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "format: %s\n", a.Format)
		fmt.Fprintf(out, "parser: %s (index %d of %d)\n", tc.ParserID, tc.Index, h.Registry().Len())
		fmt.Fprintf(out, "text:   %q\n", tc.Text)
		return nil
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify a synthetic fault against the allowlist",
	Long: `Classify a fault described by its kind and message, as the harness would.

Example:
  parsefuzz classify --kind type-mismatch --message "Unexpected end of input"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := fault.ParseKind(faultKind)
		if err != nil {
			return err
		}
		reg, err := newRegistry()
		if err != nil {
			return err
		}
		rules, err := loadRules(reg)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rules.Classify(fault.New(kind, faultMessage)))
		return nil
	},
}

var parsersCmd = &cobra.Command{
	Use:   "parsers",
	Short: "List registered and excluded parsers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := newRegistry()
		if err != nil {
			return err
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return lipgloss.NewStyle().Padding(0, 1)
			}).
			Headers("INDEX", "PARSER", "STATUS")
		for i, id := range reg.IDs() {
			t.Row(fmt.Sprint(i), id, "fuzzed")
		}
		for _, ex := range reg.Excluded() {
			t.Row("-", ex.ID, "excluded: "+ex.Reason)
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(parsersCmd)

	classifyCmd.Flags().StringVarP(&faultKind, "kind", "k", "", "Fault kind, e.g. type-mismatch")
	classifyCmd.Flags().StringVarP(&faultMessage, "message", "m", "", "Fault message")
	classifyCmd.MarkFlagRequired("kind")
}
