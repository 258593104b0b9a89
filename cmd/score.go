package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/ai-readiness-scorer/internal/benchmark"
	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/server"
)

// proberOptions lets tests point the prober at a fake transport.
var proberOptions []benchmark.Option

func newScoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score <domain>",
		Short: "Benchmark a single domain and print its scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			prober := server.NewProber(rt.cfg, rt.logger, proberOptions...)
			b, err := prober.Benchmark(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("benchmark %s: %w", args[0], err)
			}
			renderBenchmark(cmd.OutOrStdout(), b)
			return nil
		},
	}
}

func renderBenchmark(w io.Writer, b crawler.Benchmark) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(b.Domain)
	t.AppendHeader(table.Row{"Metric", "Score"})
	t.AppendRows([]table.Row{
		{"overall", scoreCell(b.Overall)},
		{"technical", scoreCell(b.Technical)},
		{"content", scoreCell(b.Content)},
		{"ai_readiness", scoreCell(b.AIReadiness)},
		{"performance", scoreCell(b.Performance)},
		{"llms_txt", scoreCell(b.LLMsTxtScore)},
		{"bot_access", scoreCell(b.BotAccessScore)},
		{"schema", scoreCell(b.SchemaScore)},
		{"sitemap", scoreCell(b.SitemapScore)},
	})
	t.Render()
}

func scoreCell(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
