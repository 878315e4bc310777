package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/csheth/chapterdesk/internal/bookapi"
	"github.com/csheth/chapterdesk/internal/config"
	"github.com/csheth/chapterdesk/internal/llm"
	"github.com/csheth/chapterdesk/internal/settings"
	"github.com/csheth/chapterdesk/internal/tui"
)

// appEnv is filled by Before and released by After.
type appEnv struct {
	cfg         *config.Config
	log         *zap.Logger
	closeLog    func() error
	restoreStd  func()
	themeLocked bool
}

func (env *appEnv) prepare(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	if cmd.IsSet("api") {
		cfg.API.BaseURL = cmd.String("api")
	}
	if cmd.IsSet("theme") {
		cfg.UI.Theme = cmd.String("theme")
		env.themeLocked = true
	}
	if cmd.IsSet("converter") {
		cfg.Conversion.Backend = cmd.String("converter")
	}
	if cmd.Bool("no-alt-screen") {
		cfg.UI.AltScreen = false
	}
	if cmd.Bool("no-watch") {
		cfg.API.Watch = false
	}
	if cmd.IsSet("log-level") {
		cfg.Logging.Level = cmd.String("log-level")
	}
	if cmd.IsSet("log-file") {
		cfg.Logging.Destination = cmd.String("log-file")
	}
	if err := cfg.Validate(); err != nil {
		return ctx, fmt.Errorf("invalid configuration: %w", err)
	}
	env.cfg = cfg

	if env.log, env.closeLog, err = cfg.Logging.Prepare(); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.restoreStd = zap.RedirectStdLog(env.log)
	env.log.Debug("Program started", zap.Strings("args", os.Args), zap.String("runtime", runtime.Version()))
	return ctx, nil
}

func (env *appEnv) release(context.Context, *cli.Command) error {
	if env.log == nil {
		return nil
	}
	env.log.Debug("Program ended")
	env.restoreStd()
	if err := env.closeLog(); err != nil {
		return fmt.Errorf("unable to close log: %w", err)
	}
	return nil
}

// logExitErr runs before After so the error still reaches the log file.
func (env *appEnv) logExitErr(_ context.Context, _ *cli.Command, err error) {
	if env.log != nil {
		env.log.Error("Program ended with error", zap.Error(err))
	}
}

func (env *appEnv) runUI(ctx context.Context, cmd *cli.Command) error {
	cfg := env.cfg
	client, err := bookapi.New(bookapi.Config{
		BaseURL:  cfg.API.BaseURL,
		Timeout:  cfg.API.Timeout,
		CacheDir: cfg.API.CacheDir,
		NoCache:  cfg.API.NoCache,
		Logger:   env.log,
	})
	if err != nil {
		return err
	}

	var converter tui.Converter = client
	if cfg.Conversion.Backend != config.BackendAPI {
		model, err := llm.New(llm.Config{
			Backend:  cfg.Conversion.Backend,
			Model:    cfg.Conversion.Model,
			Endpoint: cfg.Conversion.Endpoint,
			APIKey:   cfg.Conversion.APIKey,
		})
		if err != nil {
			return fmt.Errorf("conversion backend: %w", err)
		}
		env.log.Info("Using local conversion", zap.String("backend", model.Name()))
		converter = model
	}

	settingsPath := cfg.UI.SettingsPath
	if settingsPath == "" {
		if settingsPath, err = settings.DefaultPath(); err != nil {
			env.log.Warn("Settings will not persist", zap.Error(err))
		}
	}

	opts := []tea.ProgramOption{}
	if cfg.UI.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if cfg.UI.Mouse {
		opts = append(opts, tea.WithMouseAllMotion())
	}
	program := tea.NewProgram(tui.New(tui.Config{
		Backend:     client,
		Converter:   converter,
		Settings:    settings.Open(settingsPath),
		Logger:      env.log,
		UI:          cfg.UI,
		Watch:       cfg.API.Watch,
		ThemeLocked: env.themeLocked,
	}), opts...)

	go func() {
		<-ctx.Done()
		program.Quit()
	}()
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("program error: %w", err)
	}
	return nil
}

func (env *appEnv) dumpConfig(_ context.Context, cmd *cli.Command) error {
	data, err := env.cfg.Marshal()
	if err != nil {
		return err
	}
	if dst := cmd.Args().First(); dst != "" {
		return os.WriteFile(dst, data, 0o644)
	}
	_, err = os.Stdout.Write(data)
	return err
}

func newApp(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:            "chapterdesk",
		Usage:           "edit book chapters block by block from the terminal",
		HideHelpCommand: true,
		Before:          env.prepare,
		After:           env.release,
		ExitErrHandler:  env.logExitErr,
		Action:          env.runUI,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "load configuration from `FILE` (YAML)"},
			&cli.StringFlag{Name: "api", Usage: "book API base `URL`"},
			&cli.StringFlag{Name: "theme", Usage: "force the `THEME` (dark or light); saved preferences are ignored"},
			&cli.StringFlag{Name: "converter", Usage: "conversion `BACKEND` (api, ollama or openai)"},
			&cli.BoolFlag{Name: "no-alt-screen", Usage: "draw in the main screen buffer"},
			&cli.BoolFlag{Name: "no-watch", Usage: "do not subscribe to chapter change events"},
			&cli.StringFlag{Name: "log-level", Usage: "file log `LEVEL` (none, normal or debug)"},
			&cli.StringFlag{Name: "log-file", Usage: "write the log to `FILE`"},
		},
		Commands: []*cli.Command{
			{
				Name:      "config",
				Usage:     "Prints the effective configuration (YAML)",
				ArgsUsage: "[DESTINATION]",
				Action:    env.dumpConfig,
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	env := &appEnv{}
	err := newApp(env).Run(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n*ERROR*: %s\n", err)
		os.Exit(1)
	}
}
