package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/angas/spotwindow/app"
	"github.com/angas/spotwindow/cache"
	"github.com/angas/spotwindow/calc"
	"github.com/angas/spotwindow/hours"
	"github.com/angas/spotwindow/optimize"
	"github.com/angas/spotwindow/task"
	"github.com/spf13/cobra"
)

var ingestTomorrow bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch today's and tomorrow's prices into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := app.OpenStore(cmd.Context(), cnfg)
		if err != nil {
			return err
		}
		defer store.Close()

		clock := hours.SystemClock{}
		feeds, _ := app.Feeds(cnfg, clock)
		ing := task.NewIngestion(slog.Default().With("module", "ingestion"), clock, store.Prices, feeds...)

		offsets := []int{0, 1}
		if ingestTomorrow {
			offsets = []int{1}
		}
		n, err := ing.Run(cmd.Context(), offsets...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d intervals stored\n", n)
		return nil
	},
}

var (
	optimalHours int
	optimalMax   int
)

var optimalCmd = &cobra.Command{
	Use:   "optimal",
	Short: "List the cheapest consecutive windows among the upcoming prices",
	RunE: func(cmd *cobra.Command, args []string) error {
		if optimalHours <= 0 {
			return fmt.Errorf("--hours must be greater than zero")
		}
		if optimalMax <= 0 {
			return fmt.Errorf("--max must be greater than zero")
		}

		store, err := app.OpenStore(cmd.Context(), cnfg)
		if err != nil {
			return err
		}
		defer store.Close()

		clock := hours.SystemClock{}
		_, live := app.Feeds(cnfg, clock)
		prices := app.PriceProvider(slog.Default(), clock, store.Prices, live)
		future, err := prices.GetFuturePrices(cmd.Context())
		if err != nil {
			return err
		}

		tariff := calc.NewTariff(cnfg.Tariff.GetExchangeCents(), cnfg.Tariff.GetMarginCents())
		periods := optimize.FindOptimalPeriods(future, optimalHours, optimalMax, tariff)
		if len(periods) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no %d hour window among %d upcoming intervals\n", optimalHours, len(future))
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "START\tEND\tAVG c/kWh\tCATEGORY")
		for _, p := range periods {
			fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\n",
				hours.FormatMarket(p.Start), hours.FormatMarket(p.End), p.AveragePriceCents, p.Category)
		}
		return tw.Flush()
	},
}

var ttlGranularity int

var ttlCmd = &cobra.Command{
	Use:   "ttl",
	Short: "Show how long responses computed now stay cached",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("granularity") {
			ttlGranularity = cnfg.Market.GetGranularity()
		}
		if ttlGranularity != 15 && ttlGranularity != 60 {
			return fmt.Errorf("--granularity must be 15 or 60")
		}
		now := time.Now()
		ttl := cache.TTL(now, ttlGranularity)
		fmt.Fprintf(cmd.OutOrStdout(), "%s (until %s)\n", ttl, hours.FormatMarket(hours.NextBoundary(now, ttlGranularity)))
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestTomorrow, "tomorrow", false, "Only fetch tomorrow's prices")

	optimalCmd.Flags().IntVar(&optimalHours, "hours", 2, "Window length in hours")
	optimalCmd.Flags().IntVar(&optimalMax, "max", optimize.DefaultMaxResults, "Number of windows to list")

	ttlCmd.Flags().IntVar(&ttlGranularity, "granularity", 15, "Price interval length in minutes, defaults to market.granularity")
}
