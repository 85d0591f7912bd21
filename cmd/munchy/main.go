package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"munchykit/adapters/jsonfile"
	"munchykit/core"
	"munchykit/engine"
	"munchykit/munchy"
)

var version = "dev"

var CLI struct {
	Version  kong.VersionFlag
	Data     string `help:"Path of the local data file." type:"path" default:"~/.munchy/data.json" env:"MUNCHY_DATA"`
	User     string `help:"User id to track under." default:"me" env:"MUNCHY_USER"`
	Timezone string `help:"IANA timezone used for streak days (default: local)." env:"MUNCHY_TIMEZONE"`
	Debug    bool   `help:"Log debug output to stderr."`

	Track     TrackCmd     `cmd:"" help:"Log a win (skip, swap or gave-in)."`
	Weight    WeightCmd    `cmd:"" help:"Log a weigh-in."`
	Challenge ChallengeCmd `cmd:"" help:"Manage custom challenges."`
	Onboard   OnboardCmd   `cmd:"" help:"Answer the onboarding survey."`
	Profile   ProfileCmd   `cmd:"" help:"Edit display name or avatar."`
	Status    StatusCmd    `cmd:"" help:"Show streak, savings and weight progress." default:"1"`
	Badges    BadgesCmd    `cmd:"" help:"List badges and which are unlocked."`
	Export    ExportCmd    `cmd:"" help:"Copy local data to Redis or a SQL database."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("munchy"),
		kong.Description("Track skipped cravings, savings and streaks"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": version},
	)

	if err := run(kctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(kctx *kong.Context) error {
	logger := newLogger(os.Stderr, CLI.Debug)

	loc := time.Local
	if CLI.Timezone != "" {
		l, err := time.LoadLocation(CLI.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone %q: %w", CLI.Timezone, err)
		}
		loc = l
	}

	store, err := jsonfile.New(CLI.Data)
	if err != nil {
		return err
	}

	svc := munchy.New(
		munchy.WithStorage(store),
		munchy.WithDispatchMode(engine.DispatchSync),
		munchy.WithLogger(slog.New(logger)),
		munchy.WithLocation(loc),
	)
	defer svc.Close()

	svc.Subscribe(core.EventPersistFailed, logPersistFailure(logger))

	return kctx.Run(&Context{
		Service: svc,
		User:    core.UserID(CLI.User),
		Out:     os.Stdout,
		Logger:  logger,
	})
}

// newLogger writes warnings to w, or everything with debug set.
func newLogger(w io.Writer, debug bool) *log.Logger {
	level := log.WarnLevel
	if debug {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportCaller:    debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "munchy",
	})
}
