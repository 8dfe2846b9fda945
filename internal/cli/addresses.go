package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/corridorwatch/internal/addrbook"
)

var (
	addrKind   string
	addrFind   string
	addrFormat string
)

func init() {
	rootCmd.AddCommand(addressesCmd)
	addressesCmd.Flags().StringVar(&addrKind, "kind", "", "Filter by kind (primary|alternate|safe_alternate)")
	addressesCmd.Flags().StringVar(&addrFind, "find", "", "Look up a single address")
	addressesCmd.Flags().StringVarP(&addrFormat, "format", "f", "text", "Output format (text|json)")
}

var addressesCmd = &cobra.Command{
	Use:   "addresses",
	Short: "List registered settlement addresses",
	Args:  cobra.NoArgs,
	RunE:  runAddresses,
}

func runAddresses(cmd *cobra.Command, args []string) error {
	book := addrbook.Default()
	var list []addrbook.Address
	if addrFind != "" {
		a, ok := addrbook.Find(book, addrFind)
		if !ok {
			return fmt.Errorf("address %q is not registered", addrFind)
		}
		list = []addrbook.Address{a}
	} else {
		list = addrbook.Filter(book, addrbook.Kind(addrKind))
	}

	if addrFormat == "json" {
		return printJSON(list)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tCHAIN\tADDRESS\tMONITORED\tLABEL")
	for _, a := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", a.Kind, a.Chain, a.Addr, a.Governance.RequiresRTMonitoring, a.Label)
	}
	return w.Flush()
}
