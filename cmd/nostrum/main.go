package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sandwichfarm/nostrum/internal/account"
	"github.com/sandwichfarm/nostrum/internal/cache"
	"github.com/sandwichfarm/nostrum/internal/config"
	"github.com/sandwichfarm/nostrum/internal/identity"
	"github.com/sandwichfarm/nostrum/internal/moderation"
	nostrclient "github.com/sandwichfarm/nostrum/internal/nostr"
	"github.com/sandwichfarm/nostrum/internal/ops"
	"github.com/sandwichfarm/nostrum/internal/relays"
	"github.com/sandwichfarm/nostrum/internal/session"
	"github.com/sandwichfarm/nostrum/internal/storage"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "manual"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "init":
			handleInit()
			return
		case "keygen":
			handleKeygen()
			return
		}
	}

	var (
		showVersion = flag.Bool("version", false, "Show version information")
		configPath  = flag.String("config", "", "Path to configuration file")
		envPath     = flag.String("env", ".env", "Path to a .env file with NOSTRUM_* overrides")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("nostrum %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		fmt.Printf("  by:     %s\n", builtBy)
		os.Exit(0)
	}

	if *configPath == "" {
		fmt.Println("nostrum - headless Nostr account engine")
		fmt.Println()
		fmt.Println("No configuration file specified. Use --config <path> to specify config.")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  nostrum init              Generate example configuration")
		fmt.Println("  nostrum keygen            Generate a new keypair")
		fmt.Println("  nostrum --version         Show version information")
		fmt.Println("  nostrum --config <path>   Start with configuration file")
		os.Exit(1)
	}

	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading environment: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := ops.NewLogger(&cfg.Logging)
	ops.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("nostrum failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *ops.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.LogStartup(version, commit, map[string]interface{}{
		"storage":       cfg.Storage.Driver,
		"local_relays":  len(cfg.Relays.Local),
		"search_relays": len(cfg.Relays.Search),
	})

	id, err := identity.FromConfig(&cfg.Identity)
	if err != nil {
		return fmt.Errorf("failed to load identity: %w", err)
	}

	st, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer st.Close()

	quiet := time.Duration(cfg.Notify.QuietWindowMs) * time.Millisecond
	graph := cache.New(st, quiet, logger)
	if _, err := graph.Load(ctx); err != nil {
		return err
	}

	snapshots := storage.NewSnapshotFile(cfg.Account.SnapshotPath)
	state := account.DefaultSnapshot(id.PubKey(), cfg)
	found, err := snapshots.Load(&state)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if found && state.PubKey != id.PubKey() {
		logger.Warn("saved account belongs to another key, starting fresh",
			"path", snapshots.Path(), "saved", state.PubKey)
		state = account.DefaultSnapshot(id.PubKey(), cfg)
	}

	client := nostrclient.New(ctx, &cfg.Relays.Policy, logger)
	defer client.Close()

	acc := account.New(id, state, graph, client, account.Options{
		Policy: moderation.Policy{
			ReportThreshold: cfg.Moderation.ReportThreshold,
			SpamThreshold:   cfg.Moderation.SpamThreshold,
		},
		QuietWindow:   quiet,
		DefaultRelays: relays.FromConfig(config.Default().Relays.Local),
		Reconciler:    relays.NewReconciler(client, cfg.Relays.Search, logger),
		Logger:        logger,
	})
	defer acc.Close()

	sess := session.New(acc, graph, client, nostrclient.NewDiscovery(client, graph, logger), snapshots, session.Options{
		ReconcileDelay:   time.Duration(cfg.Relays.Policy.ReconcileDelayMs) * time.Millisecond,
		BootstrapTimeout: time.Duration(cfg.Relays.Policy.BootstrapTimeoutMs) * time.Millisecond,
		Logger:           logger,
	})
	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	logger.Info("account ready",
		"npub", id.Npub(),
		"writeable", id.IsWriteable(),
		"relays", len(acc.DesiredRelaySet()))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	sess.Stop()
	if err := snapshots.Save(acc.Snapshot()); err != nil {
		logger.Warn("failed to save account on shutdown", "error", err)
	}
	logger.LogShutdown(sig.String())
	return nil
}

func handleInit() {
	exampleConfig, err := config.GetExampleConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading example config: %v\n", err)
		os.Exit(1)
	}

	fmt.Print(string(exampleConfig))
}

func handleKeygen() {
	id := identity.Generate()
	nsec, err := id.Nsec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("npub: %s\n", id.Npub())
	fmt.Printf("nsec: %s\n", nsec)
	fmt.Println()
	fmt.Println("Keep the nsec secret. Export it as NOSTRUM_NSEC to post.")
}
