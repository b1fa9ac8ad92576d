package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"signal-bot/internal/access"
	"signal-bot/internal/cache"

	"github.com/joho/godotenv"
)

var (
	loadEnvFunc      = godotenv.Load
	connectRedisFunc = cache.NewRedisClient
)

type options struct {
	redisURL string
	key      string
	command  string
	codes    []string
}

// codeStore is the part of access.RedisCodes the commands use.
type codeStore interface {
	Add(ctx context.Context, codes ...string) error
	Revoke(ctx context.Context, codes ...string) error
	List(ctx context.Context) ([]string, error)
}

func main() {
	_ = loadEnvFunc()

	opts, err := parseOptions(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("parse options: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := connectRedisFunc(ctx, opts.redisURL)
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	defer client.Close()

	store := access.NewRedisCodes(client, opts.key, nil)
	if err := run(ctx, store, opts, os.Stdout); err != nil {
		log.Fatalf("%s: %v", opts.command, err)
	}
}

func run(ctx context.Context, store codeStore, opts options, out io.Writer) error {
	switch opts.command {
	case "add":
		if err := store.Add(ctx, opts.codes...); err != nil {
			return err
		}
		fmt.Fprintf(out, "issued %d code(s) under %s\n", len(opts.codes), opts.key)
	case "revoke":
		if err := store.Revoke(ctx, opts.codes...); err != nil {
			return err
		}
		fmt.Fprintf(out, "revoked %d code(s) under %s\n", len(opts.codes), opts.key)
	case "list":
		codes, err := store.List(ctx)
		if err != nil {
			return err
		}
		for _, c := range codes {
			fmt.Fprintln(out, c)
		}
	default:
		return fmt.Errorf("unknown command %q", opts.command)
	}
	return nil
}

func parseOptions(args []string, getenv func(string) string) (options, error) {
	fs := flag.NewFlagSet("accessctl", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: accessctl [flags] add|revoke CODE... | list")
		fs.PrintDefaults()
	}

	keyDefault := strings.TrimSpace(getenv("ACCESS_CODES_REDIS_KEY"))
	if keyDefault == "" {
		keyDefault = access.DefaultRedisKey
	}
	redisURL := fs.String("redis", strings.TrimSpace(getenv("REDIS_URL")), "redis URL or host:port (default from REDIS_URL)")
	key := fs.String("key", keyDefault, "redis set holding the codes (default from ACCESS_CODES_REDIS_KEY)")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if *redisURL == "" {
		return options{}, fmt.Errorf("REDIS_URL or -redis is required")
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return options{}, fmt.Errorf("missing command")
	}
	opts := options{redisURL: *redisURL, key: *key, command: strings.ToLower(rest[0])}
	opts.codes = access.SplitCodes(strings.Join(rest[1:], ","))

	switch opts.command {
	case "add", "revoke":
		if len(opts.codes) == 0 {
			return options{}, fmt.Errorf("%s needs at least one code", opts.command)
		}
	case "list":
	default:
		return options{}, fmt.Errorf("unknown command %q", opts.command)
	}
	return opts, nil
}
