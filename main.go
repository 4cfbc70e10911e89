package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

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
		user, dir, cfgPath, debugPath, palette string
		window, epochs                         int
		seed                                   uint64
		useTUI, noFit, initConfig              bool
	)
	flag.StringVar(&user, "u", "default", "profile name")
	flag.StringVar(&user, "User", "default", "profile name")
	flag.StringVar(&dir, "dir", "", "MIDI directory (overrides the profile input dir)")
	flag.StringVar(&cfgPath, "config", "", "config file (default ~/.config/go-midivel/config.json)")
	flag.StringVar(&debugPath, "debug", "", "write debug log to this file")
	flag.StringVar(&palette, "palette", "", "GIMP .gpl palette for the TUI")
	flag.IntVar(&window, "window", 0, "window length in tokens (overrides config)")
	flag.IntVar(&epochs, "epochs", -1, "training epochs (overrides config)")
	flag.Uint64Var(&seed, "seed", 0, "split and shuffle seed (overrides config)")
	flag.BoolVar(&useTUI, "tui", false, "show the progress view")
	flag.BoolVar(&noFit, "nofit", false, "build the datasets only")
	flag.BoolVar(&initConfig, "init", false, "write the default config and exit")
	flag.Parse()

	if initConfig {
		if err := writeDefaults(cfgPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "window":
			cfg.Dataset.Window = window
		case "epochs":
			cfg.Training.Epochs = epochs
		case "seed":
			cfg.Dataset.Seed = seed
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	dir, err = inputDir(cfg, user, dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
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

	v := &pipeline.Velocity{
		Dataset:  cfg.Dataset,
		Training: cfg.Training,
		Fit:      !noFit && cfg.Training.Epochs > 0,
	}

	if !useTUI {
		v.Progress = os.Stdout
		report, err := v.Run(ctx, dir)
		if err != nil {
			debug.Logger().Error("velocity pipeline failed", "dir", dir, "err", err)
			os.Exit(1)
		}
		fmt.Println(report.Summary())
		return
	}

	th, err := loadTheme(palette)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	err = tui.Run(ctx, th, "go-midivel "+filepath.Base(dir), func(ctx context.Context, send func(tea.Msg)) (string, error) {
		v.OnStage = func(name string, total int) { send(tui.StageMsg{Name: name, Total: total}) }
		v.OnFile = func(p token.FileProgress) { send(tui.FileMsg{Path: p.Path, Tokens: p.Tokens, Err: p.Err}) }
		report, err := v.Run(ctx, dir)
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

// inputDir resolves the MIDI directory: the profile must exist even when
// -dir overrides its input dir
func inputDir(cfg *config.Config, user, override string) (string, error) {
	p, err := cfg.Profile(user)
	if err != nil {
		return "", err
	}
	if override != "" {
		return override, nil
	}
	return p.InputDir, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

func writeDefaults(path string) error {
	cfg := config.DefaultConfig()
	if path == "" {
		if err := cfg.Save(); err != nil {
			return err
		}
		path, _ = config.Path()
	} else if err := cfg.SaveTo(path); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func loadTheme(path string) (*theme.Theme, error) {
	if path == "" {
		return theme.New(nil), nil
	}
	p, err := theme.LoadGPL(path)
	if err != nil {
		return nil, err
	}
	return theme.New(p), nil
}
