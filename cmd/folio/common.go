package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/glamour"

	"folio/internal/config"
	"folio/internal/strategy"
	"folio/internal/strategy/builtins"
	"folio/internal/util"
)

// configFlag is embedded by commands that read the configuration file.
type configFlag struct {
	path string
}

func (c *configFlag) register(f *flag.FlagSet) {
	f.StringVar(&c.path, "config", config.Path(), "path to the YAML configuration")
}

// load reads the configuration and installs the configured logger. Logs go
// to stderr so stdout stays clean for reports.
func (c *configFlag) load() (*config.Config, error) {
	cfg, err := config.Load(c.path)
	if err != nil {
		return nil, err
	}
	util.SetDefault(util.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))
	return cfg, nil
}

func presets() *strategy.Registry {
	r := strategy.NewRegistry()
	builtins.Register(r)
	return r
}

// printMarkdown renders md for the terminal, falling back to the raw text.
func printMarkdown(md, style string) {
	if style == "" || style == "none" {
		fmt.Print(md)
		return
	}
	out, err := glamour.Render(md, style)
	if err != nil {
		slog.Debug("glamour render failed", "err", err)
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
}
