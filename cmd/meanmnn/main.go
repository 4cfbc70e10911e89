package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"

	"go-midivel/config"
	"go-midivel/debug"
	"go-midivel/pipeline"
	"go-midivel/theme"
	"go-midivel/token"
	"go-midivel/tui"
)

func main() {
	var (
		user, cfgPath, debugPath, in, out string
		useTUI                            bool
	)
	flag.StringVar(&user, "u", "default", "profile name")
	flag.StringVar(&user, "User", "default", "profile name")
	flag.StringVar(&cfgPath, "config", "", "config file (default ~/.config/go-midivel/config.json)")
	flag.StringVar(&debugPath, "debug", "", "write debug log to this file")
	flag.StringVar(&in, "dir", "", "input directory (overrides the profile)")
	flag.StringVar(&out, "out", "", "output directory (overrides the profile)")
	flag.BoolVar(&useTUI, "tui", false, "show the progress view")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if cfgPath == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFrom(cfgPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	profile, err := cfg.Profile(user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if in != "" {
		profile.InputDir = in
	}
	if out != "" {
		profile.OutputDir = out
	}

	if debugPath == "" {
		debugPath = cfg.DebugLog
	}
	if debugPath != "" {
		if err := debug.Enable(debugPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer debug.Disable()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	th := theme.New(nil)
	m := &pipeline.MeanMNN{Histogram: cfg.Histogram, Fill: th.Fill().RGBA()}

	if !useTUI {
		report, err := m.Run(ctx, profile)
		if err != nil {
			debug.Logger().Error("mean mnn failed", "user", user, "err", err)
			os.Exit(1)
		}
		fmt.Println(report.Summary())
		return
	}

	err = tui.Run(ctx, th, "mean MNN: "+user, func(ctx context.Context, send func(tea.Msg)) (string, error) {
		m.OnStage = func(name string, total int) { send(tui.StageMsg{Name: name, Total: total}) }
		m.OnFile = func(p token.FileProgress) { send(tui.FileMsg{Path: p.Path, Tokens: p.Tokens, Err: p.Err}) }
		report, err := m.Run(ctx, profile)
		if err != nil {
			return "", err
		}
		return report.Summary(), nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
