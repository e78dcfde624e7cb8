package cli

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/garyjia/open-audit/internal/domain/auditrule"
	"github.com/garyjia/open-audit/internal/domain/entity"
)

type flagsOptions struct {
	amount, date, vendor string
	fiscalYear           string
	threshold            string
	caseSensitive        bool
}

func newFlagsCmd() *cobra.Command {
	opts := &flagsOptions{}
	cmd := &cobra.Command{
		Use:   "flags",
		Short: "Evaluate the audit rules against a single expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFlags(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.amount, "amount", "0", "expense amount")
	cmd.Flags().StringVar(&opts.date, "date", "", "expense date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.vendor, "vendor", "", "vendor name")
	cmd.Flags().StringVar(&opts.fiscalYear, "fiscal-year", "2025-2026", "financial year checked by the date rule")
	cmd.Flags().StringVar(&opts.threshold, "threshold", "20000", "high amount threshold")
	cmd.Flags().BoolVar(&opts.caseSensitive, "case-sensitive", false, "match restricted vendor keywords case-sensitively")
	return cmd
}

func runFlags(cmd *cobra.Command, opts *flagsOptions) error {
	fy, err := entity.ParseFiscalYear(opts.fiscalYear)
	if err != nil {
		return err
	}
	threshold, err := decimal.NewFromString(opts.threshold)
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(opts.amount)
	if err != nil {
		return err
	}

	engine := auditrule.NewEngine(auditrule.DefaultRules(auditrule.Config{
		FiscalYear:          fy,
		HighAmountThreshold: threshold,
		CaseSensitiveVendor: opts.caseSensitive,
	})...)

	flags := engine.Flag(auditrule.Subject{Amount: amount, Date: opts.date, Vendor: opts.vendor})
	if len(flags) == 0 {
		cmd.Println("No flags raised.")
		return nil
	}
	for _, f := range flags {
		cmd.Printf("- %s\n", f)
	}
	return nil
}
