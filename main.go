package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	chatservice "transport-connect/cmd/chat_service"
	notificationservice "transport-connect/cmd/notification_service"
	"transport-connect/internal/cli"
	"transport-connect/internal/general/bootstrap"
)

func main() {
	if len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		cli.PrintUsage(os.Stdout)
		os.Exit(0)
	}

	mode, svcArgs, err := cli.ParseMode(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cli.PrintUsage(os.Stderr)
		os.Exit(2)
	}

	// cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch mode {

	case cli.ModeChat:
		fs := flag.NewFlagSet(cli.ModeChat, flag.ContinueOnError)
		configPath := fs.String("config", "config/config.yaml", "Path to the YAML configuration file")
		store := fs.String("store", bootstrap.StorePostgres, "Store of record: postgres | memory")
		maxConc := fs.Int("max-concurrent", 150, "Maximum number of concurrent HTTP requests to process (websockets excluded)")
		cli.AttachUsage(fs, cli.ModeChat)

		parseOrExit(fs, svcArgs)
		checkStore(fs, *store)
		if *maxConc < 1 {
			fmt.Fprintln(os.Stderr, "Error: --max-concurrent must be >= 1")
			fs.Usage()
			os.Exit(2)
		}
		if err := chatservice.Run(ctx, chatservice.Options{
			ConfigPath:    *configPath,
			Store:         *store,
			MaxConcurrent: *maxConc,
		}); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case cli.ModeNotify:
		fs := flag.NewFlagSet(cli.ModeNotify, flag.ContinueOnError)
		configPath := fs.String("config", "config/config.yaml", "Path to the YAML configuration file")
		store := fs.String("store", bootstrap.StorePostgres, "Store of record: postgres | memory")
		maxConc := fs.Int("max-concurrent", 50, "Maximum number of concurrent HTTP requests to process")
		prefetch := fs.Int("prefetch", 8, "RabbitMQ prefetch count for consumer channels")
		cli.AttachUsage(fs, cli.ModeNotify)

		parseOrExit(fs, svcArgs)
		checkStore(fs, *store)
		if *prefetch <= 0 {
			fmt.Fprintln(os.Stderr, "Error: --prefetch must be > 0")
			fs.Usage()
			os.Exit(2)
		}
		if *maxConc < 1 {
			fmt.Fprintln(os.Stderr, "Error: --max-concurrent must be >= 1")
			fs.Usage()
			os.Exit(2)
		}
		if err := notificationservice.Run(ctx, notificationservice.Options{
			ConfigPath:    *configPath,
			Store:         *store,
			MaxConcurrent: *maxConc,
			Prefetch:      *prefetch,
		}); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	default:
		// ParseMode only returns known modes
		fmt.Fprintln(os.Stderr, "Error: unknown mode")
		os.Exit(2)
	}

	// let deferred logs flush on very fast exits
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Millisecond):
	}
}

func parseOrExit(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}
}

func checkStore(fs *flag.FlagSet, store string) {
	if store != bootstrap.StorePostgres && store != bootstrap.StoreMemory {
		fmt.Fprintf(os.Stderr, "Error: --store must be %s or %s\n", bootstrap.StorePostgres, bootstrap.StoreMemory)
		fs.Usage()
		os.Exit(2)
	}
}
