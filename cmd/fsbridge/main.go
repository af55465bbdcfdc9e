package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/bridge"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/channel"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/codec"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "", "TOML or YAML config file")
	url := flag.String("url", "", "Worker websocket URL (overrides FSBRIDGE_WORKER_URL)")
	encoding := flag.String("encoding", "", `Text encoding, or "binary" (overrides FSBRIDGE_ENCODING)`)
	timeout := flag.Duration("timeout", 10*time.Second, "How long to wait for the worker connection")
	verbose := flag.Bool("v", false, "Log to stderr")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "fsbridge: unknown command %q\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fsbridge: %v\n", err)
		os.Exit(1)
	}
	if *url != "" {
		cfg.Bridge.WorkerURL = *url
	}
	if *encoding != "" {
		cfg.Bridge.Encoding = *encoding
	}
	enc := codec.Encoding(cfg.Bridge.Encoding)
	if cfg.Bridge.Encoding == "binary" {
		enc = codec.Binary
	}

	logger := logging.NewNop()
	if *verbose {
		logger = logging.NewDevelopment()
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch := channel.Dial(channel.Options{
		URL:               cfg.Bridge.WorkerURL,
		CompressThreshold: cfg.Worker.CompressThreshold,
		Logger:            logger,
	})
	defer ch.Close()

	if err := waitReady(ctx, ch, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "fsbridge: connecting to %s: %v\n", cfg.Bridge.WorkerURL, err)
		ch.Close()
		os.Exit(1)
	}

	sched := scheduler.New(scheduler.Options{
		MaxConcurrent: cfg.Bridge.Concurrency,
		Delay:         cfg.Bridge.CallDelay.Std(),
		RateLimit:     cfg.Bridge.RateLimit,
		Logger:        logger,
	})

	out := newPrinter(os.Stdout)
	b := bridge.New(ch, sched, bridge.Options{
		Encoding:  enc,
		Window:    cfg.Bridge.CoalesceWindow.Std(),
		OnChange:  out.change,
		OnOffline: func() { fmt.Fprintln(os.Stderr, "fsbridge: worker offline") },
		Logger:    logger,
	})
	defer b.Close()

	env := &env{bridge: b, out: out, encoding: enc, stdin: os.Stdin}
	if err := cmd.run(ctx, env, flag.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			usage()
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "fsbridge: %v\n", err)
		// deferred cleanups do not run past os.Exit
		b.Close()
		ch.Close()
		os.Exit(1)
	}
}

// waitReady blocks until the channel reaches Ready. Calls made earlier would
// be buffered, and once admitted they are never abandoned.
func waitReady(ctx context.Context, ch channel.Channel, timeout time.Duration) error {
	ready := make(chan struct{}, 1)
	unsubscribe := ch.OnStateChange(func(state channel.State) {
		if state == channel.Ready {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()
	if ch.State() == channel.Ready {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func usage() {
	w := flag.CommandLine.Output()
	fmt.Fprintln(w, "Usage: fsbridge [flags] COMMAND [ARGS]")
	fmt.Fprintln(w, "\nCommands:")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].usage)
	}
	fmt.Fprintln(w, "\nFlags:")
	flag.PrintDefaults()
}

type env struct {
	bridge   *bridge.Bridge
	out      *printer
	encoding codec.Encoding
	stdin    io.Reader
}
