package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"agencyfund/internal/core"
	"agencyfund/internal/tax"
)

var taxCmd = &cobra.Command{
	Use:   "tax <excess>",
	Short: "Show the progressive tax on an unspent excess",
	Long: `Allocates the excess across the tax bands and prints the tax owed per band.
Amounts accept the same forms as chat, e.g. 3,400,000 or 3.4m.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		excess, err := core.ParseAmount(args[0])
		if err != nil {
			return fmt.Errorf("parse excess %q: %w", args[0], err)
		}

		calc := tax.NewCalculator(nil)
		total := calc.Compute(excess)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Excess: %s\n\n", excess)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "BAND\tRATE\tTAXABLE\tTAX")
		for _, a := range calc.Breakdown(excess) {
			fmt.Fprintf(w, "%s\t%s%%\t%s\t%s\n", bandLabel(a.Band), a.Band.Rate.Shift(2).StringFixed(1), a.Taxable, a.Tax)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nTotal tax: %s (effective rate %.2f%%)\n", total, tax.EffectiveRate(total, excess))
		return nil
	},
}

func bandLabel(b tax.Band) string {
	if !b.Width.IsPositive() {
		return "remainder"
	}
	return "next " + core.MoneyFromDecimal(b.Width).String()
}

func init() {
	rootCmd.AddCommand(taxCmd)
}
