// Package main provides grayhound - interactive bloatware cleanup driven by a local analysis agent.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"

	"github.com/grayhound-dev/grayhound/pkg/agent"
	"github.com/grayhound-dev/grayhound/pkg/catalog"
	"github.com/grayhound-dev/grayhound/pkg/config"
	"github.com/grayhound-dev/grayhound/pkg/ignore"
	"github.com/grayhound-dev/grayhound/pkg/input"
	"github.com/grayhound-dev/grayhound/pkg/notify"
	"github.com/grayhound-dev/grayhound/pkg/progress"
	"github.com/grayhound-dev/grayhound/pkg/protocol"
	"github.com/grayhound-dev/grayhound/pkg/status"
	"github.com/grayhound-dev/grayhound/pkg/web"
	"github.com/grayhound-dev/grayhound/pkg/workflow"
)

// opts holds all command-line options.
type opts struct {
	Agent     string `short:"a" long:"agent" description:"agent websocket url (overrides config)"`
	MinRisk   int    `short:"r" long:"min-risk" default:"-1" description:"minimum risk score 0-10 (overrides config)"`
	Language  string `short:"l" long:"lang" description:"report language: en, ko, ja or zh (overrides config)"`
	ConfigDir string `long:"config-dir" description:"config directory (default ~/.config/grayhound)"`
	Debug     bool   `short:"d" long:"debug" description:"enable debug logging"`
	NoColor   bool   `long:"no-color" description:"disable color output"`
	Version   bool   `short:"v" long:"version" description:"print version and exit"`
	Serve     bool   `short:"s" long:"serve" description:"start web dashboard for real-time streaming"`
	Port      int    `short:"p" long:"port" default:"8080" description:"web dashboard port"`
}

var revision = "unknown"

// settings are the effective run settings after CLI overrides are applied to the config.
type settings struct {
	AgentURL string
	MinRisk  int
	Language string
}

func main() {
	fmt.Printf("grayhound %s\n", revision)

	var o opts
	parser := flags.NewParser(&o, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if o.Version {
		os.Exit(0)
	}

	setupLog(o.Debug)

	// setup context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, o); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts) error {
	cfg, err := config.Load(o.ConfigDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	set, err := resolveSettings(cfg, o)
	if err != nil {
		return err
	}

	ignoreList, err := ignore.Load(cfg.IgnorePath())
	if err != nil {
		return fmt.Errorf("load ignore list: %w", err)
	}

	baseLog, err := progress.NewLogger(progress.Config{
		Dir:      cfg.ProgressDir,
		RunID:    uuid.NewString(),
		AgentURL: set.AgentURL,
		NoColor:  o.NoColor,
		Colors:   cfg.Colors,
	})
	if err != nil {
		return fmt.Errorf("create progress logger: %w", err)
	}
	defer baseLog.Close()

	ignoreList.OnChange(func(names []string) {
		baseLog.Print("ignore list reloaded, %d names", len(names))
	})
	go watchIgnore(ctx, ignoreList)

	// wrap logger with broadcast logger if --serve is enabled
	var runLog workflow.Logger = baseLog
	var dash *web.Dashboard
	if o.Serve {
		dash = web.NewDashboard(web.DashboardConfig{BaseLog: baseLog, Port: o.Port, AgentURL: set.AgentURL}, &status.StateHolder{})
		if runLog, err = dash.Start(ctx); err != nil {
			return fmt.Errorf("start dashboard: %w", err)
		}
	}

	orch := workflow.New(workflow.Config{Language: set.Language, Ignored: ignoreList.Names}, nil, runLog)
	if dash != nil {
		dash.Follow(orch)
		baseLog.PrintRaw("web dashboard: %s\n", dash.URL())
	}

	cat := catalog.New(nil)
	client := agent.New(agent.Config{
		URL:              set.AgentURL,
		HandshakeTimeout: time.Duration(cfg.HandshakeTimeoutMs) * time.Millisecond,
		WriteTimeout:     time.Duration(cfg.WriteTimeoutMs) * time.Millisecond,
	}, orch, cat)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to agent %s: %w", set.AgentURL, err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			lgr.Printf("[WARN] %v", err)
		}
	}()

	notifier, err := notify.New(cfg.NotifyParams(), baseLog)
	if err != nil {
		return fmt.Errorf("create notifier: %w", err)
	}

	collector := input.NewTerminalCollector()
	orch.SetConfirmer(collector)

	restore := disableCtrlCEcho()
	defer restore()

	printStartupInfo(baseLog, set, ignoreList)

	sh := newShell(shellConfig{
		Orch:     orch,
		Client:   client,
		Catalog:  cat,
		Ignore:   ignoreList,
		Input:    collector,
		Out:      os.Stdout,
		Log:      runLog,
		Notifier: notifier,
		MinRisk:  set.MinRisk,
		AgentURL: set.AgentURL,
		NoColor:  o.NoColor,
	})
	if err := sh.Run(ctx); err != nil {
		return fmt.Errorf("shell: %w", err)
	}

	baseLog.PrintRaw("\nsession ended after %s\n", baseLog.Elapsed())
	return nil
}

// resolveSettings applies CLI overrides on top of the loaded config.
func resolveSettings(cfg *config.Config, o opts) (settings, error) {
	set := settings{AgentURL: cfg.AgentURL, MinRisk: cfg.MinRiskScore, Language: cfg.Language}
	if o.Agent != "" {
		set.AgentURL = o.Agent
	}
	if o.MinRisk >= 0 {
		set.MinRisk = o.MinRisk
	}
	if o.Language != "" {
		set.Language = o.Language
	}
	if set.MinRisk > 10 {
		return settings{}, fmt.Errorf("%w: %d", workflow.ErrInvalidRisk, set.MinRisk)
	}
	if set.AgentURL == "" {
		set.AgentURL = agent.DefaultURL
	}
	if normalized := protocol.NormalizeLanguage(set.Language); normalized != set.Language {
		lgr.Printf("[WARN] unsupported language %q, using %s", set.Language, normalized)
		set.Language = normalized
	}
	return set, nil
}

// watchIgnore reloads the ignore list when its file changes, until ctx is canceled.
func watchIgnore(ctx context.Context, l *ignore.List) {
	err := l.Watch(ctx, func(err error) { lgr.Printf("[WARN] ignore list: %v", err) })
	if err != nil && !errors.Is(err, context.Canceled) {
		lgr.Printf("[WARN] ignore list watcher stopped: %v", err)
	}
}

func setupLog(debug bool) {
	if debug {
		lgr.Setup(lgr.Debug, lgr.Msec, lgr.Out(os.Stderr))
		return
	}
	lgr.Setup(lgr.Out(os.Stderr))
}

func printStartupInfo(log *progress.Logger, set settings, l *ignore.List) {
	log.PrintRaw("agent: %s\n", set.AgentURL)
	log.PrintRaw("minimum risk score: %d, report language: %s\n", set.MinRisk, set.Language)
	log.PrintRaw("ignore list: %s (%d names)\n", l.Path(), len(l.Names()))
	log.PrintRaw("progress log: %s\n\n", log.Path())
}
