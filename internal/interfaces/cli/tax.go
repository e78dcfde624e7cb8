package cli

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/garyjia/open-audit/internal/domain/taxengine"
)

type taxOptions struct {
	income, investments, rent, other string
	asJSON                           bool
}

func newTaxCmd() *cobra.Command {
	opts := &taxOptions{}
	cmd := &cobra.Command{
		Use:   "tax",
		Short: "Compare the old and new tax regimes for the given figures",
		Long: `Runs the regime comparison locally without saving a record.
Unparsable or negative values count as zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTax(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.income, "income", "0", "annual income")
	cmd.Flags().StringVar(&opts.investments, "investments", "0", "80C investments")
	cmd.Flags().StringVar(&opts.rent, "rent", "0", "rent paid")
	cmd.Flags().StringVar(&opts.other, "other", "0", "other deductions")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "output the result as JSON")
	return cmd
}

func runTax(cmd *cobra.Command, opts *taxOptions) error {
	parse := func(s string) decimal.Decimal {
		return taxengine.ParseNonNegativeDecimalOrDefault(s, decimal.Zero)
	}
	result := taxengine.Compute(taxengine.Input{
		AnnualIncome:    parse(opts.income),
		Investments80C:  parse(opts.investments),
		RentPaid:        parse(opts.rent),
		OtherDeductions: parse(opts.other),
	})

	if opts.asJSON {
		data, err := json.MarshalIndent(map[string]interface{}{
			"oldRegime":      map[string]decimal.Decimal{"taxableIncome": result.Old.TaxableIncome, "tax": result.Old.Tax},
			"newRegime":      map[string]decimal.Decimal{"taxableIncome": result.New.TaxableIncome, "tax": result.New.Tax},
			"recommendation": result.Recommendation.String(),
			"savings":        result.Savings,
			"finalTax":       result.FinalTax,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("%-12s %15s %15s\n", "", "Taxable", "Tax")
	cmd.Printf("%-12s %15s %15s\n", "Old Regime", result.Old.TaxableIncome.StringFixed(2), result.Old.Tax.StringFixed(2))
	cmd.Printf("%-12s %15s %15s\n", "New Regime", result.New.TaxableIncome.StringFixed(2), result.New.Tax.StringFixed(2))
	cmd.Println()
	cmd.Printf("Recommendation: %s (saves %s)\n", result.Recommendation, result.Savings.StringFixed(2))
	return nil
}
