package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"angrydb/internal/bridge"
	"angrydb/internal/config"
	"angrydb/internal/durability"
	"angrydb/internal/kv"
	"angrydb/internal/kverr"
	"angrydb/internal/logging"
	"angrydb/internal/store"
)

var logger = logging.For("cli")

const usage = `usage: angrydb [flags] <command> <key> [value]

commands:
  get <key>              print the raw value (quoted)
  set <key> <value>      store value bytes
  get-u64 <key>          print the u64 counter (0 if absent)
  set-u64 <key> <n>      store n as 8 little-endian bytes
  incr <key>             read, add one, write back (not atomic)
  get-utf8 <key>         print the value as text ("" if absent)
  set-utf8 <key> <text>  store text

flags:
`

// Exit codes by error kind.
const (
	exitOK = iota
	exitFailure
	exitDecode
	exitStorage
	exitRetryable
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("angrydb", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "path to config file")
	engine := fs.String("engine", "", "storage engine: bolt or badger (overrides config)")
	path := fs.String("path", "", "database path (overrides config)")
	workers := fs.Int("workers", -1, "worker pool size, 0 = available parallelism (overrides config)")
	logLevel := fs.String("log-level", "", "log level (overrides config)")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}

	// Load config (TOML file with defaults)
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitFailure
	}

	// CLI flags override config file values
	if *engine != "" {
		cfg.Storage.Engine = *engine
	}
	if *path != "" {
		cfg.Storage.Path = *path
	}
	if *workers >= 0 {
		cfg.Workers.Size = *workers
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitFailure
	}
	logging.InitWriter(stderr, cfg.Logging.Level, cfg.Logging.Format)

	cmd := fs.Args()
	if len(cmd) < 2 {
		fs.Usage()
		return exitFailure
	}

	cfg.Storage.Path = config.ExpandHome(cfg.Storage.Path)
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0700); err != nil {
		fmt.Fprintf(stderr, "creating data dir: %v\n", err)
		return exitFailure
	}

	db, err := store.Open(cfg.Storage.Engine, cfg.Storage.Path, cfg.Storage.Bucket)
	if err != nil {
		fmt.Fprintf(stderr, "store: %v\n", err)
		return exitStorage
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing store", "err", err)
		}
	}()

	pool := bridge.NewPool(cfg.Workers.Size, cfg.Workers.Queue)
	throttler := durability.New(db, cfg.Durability.MinFlushInterval())
	go throttler.Run()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = execute(ctx, kv.New(db, pool, throttler), cmd, stdout)

	// Drain the pool before the final flush so no write lands after it.
	if serr := pool.Shutdown(context.Background()); serr != nil {
		logger.Warn("worker pool shutdown", "err", serr)
	}
	throttler.Stop()
	logger.Debug("done", "pool", pool.Stats(), "durability", throttler.Stats())

	if err != nil {
		fmt.Fprintf(stderr, "angrydb: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

func execute(ctx context.Context, a *kv.Accessor, cmd []string, out io.Writer) error {
	name, key, rest := cmd[0], []byte(cmd[1]), cmd[2:]
	needValue := func() (string, error) {
		if len(rest) != 1 {
			return "", fmt.Errorf("%s: expected exactly one value", name)
		}
		return rest[0], nil
	}

	switch name {
	case "get":
		l, err := a.Get(key).Await(ctx)
		if err != nil {
			return err
		}
		if !l.Found {
			fmt.Fprintln(out, "(absent)")
			return nil
		}
		fmt.Fprintf(out, "%q\n", l.Value)
	case "set":
		v, err := needValue()
		if err != nil {
			return err
		}
		_, err = a.Set(key, []byte(v)).Await(ctx)
		return err
	case "get-u64":
		n, err := a.GetU64(key).Await(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, n)
	case "set-u64":
		v, err := needValue()
		if err != nil {
			return err
		}
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("set-u64: %w", err)
		}
		_, err = a.SetU64(key, n).Await(ctx)
		return err
	case "incr":
		n, err := a.GetU64(key).Await(ctx)
		if err != nil {
			return err
		}
		if _, err := a.SetU64(key, n+1).Await(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, n+1)
	case "get-utf8":
		s, err := a.GetUTF8(key).Await(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, s)
	case "set-utf8":
		v, err := needValue()
		if err != nil {
			return err
		}
		_, err = a.SetUTF8(key, v).Await(ctx)
		return err
	default:
		return fmt.Errorf("unknown command %q", name)
	}
	return nil
}

func exitCode(err error) int {
	var e *kverr.Error
	if !errors.As(err, &e) {
		return exitFailure
	}
	switch {
	case e.Kind.Retryable():
		return exitRetryable
	case e.Kind == kverr.KindDecode:
		return exitDecode
	case e.Kind == kverr.KindStorage:
		return exitStorage
	default:
		return exitFailure
	}
}
