package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
)

type presetsCmd struct {
	style string
}

func (*presetsCmd) Name() string     { return "presets" }
func (*presetsCmd) Synopsis() string { return "list the built-in strategy presets" }
func (*presetsCmd) Usage() string {
	return `folio presets [-style dark]

  Lists every preset usable as backtest.preset or with run -preset.
`
}

func (c *presetsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.style, "style", "dark", "glamour style, none for raw markdown")
}

func (c *presetsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	reg := presets()

	var b strings.Builder
	b.WriteString("# Presets\n\n")
	for _, name := range reg.List() {
		p, _ := reg.Get(name)
		fmt.Fprintf(&b, "## %s\n\n%s\n\nRebalance: %s\n\n| Ticker | Ratio | Buy | Sell |\n|---|---:|---|---|\n",
			name, p.Description(), p.Rebalance())
		for _, pos := range p.Positions() {
			fmt.Fprintf(&b, "| %s | %.2f | %s | %s |\n", pos.Ticker, pos.Ratio, orNever(pos.BuySignal), orNever(pos.SellSignal))
		}
		b.WriteString("\n")
	}
	printMarkdown(b.String(), c.style)
	return subcommands.ExitSuccess
}

func orNever(signal string) string {
	if signal == "" {
		return "never"
	}
	return "`" + signal + "`"
}
