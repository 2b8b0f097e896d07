package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/defistate/reserve-ledger-go/cmd/client/config"
	"github.com/defistate/reserve-ledger-go/engine"
	"github.com/defistate/reserve-ledger-go/streams/jsonrpc/client"
)

const usage = `usage: client [-config path] <command> [args]

commands:
  state                  print the reserve record
  deposit N              deposit N tokens
  withdraw N             withdraw N base units
  seed T B [MIN MAX]     seed an empty pool
  watch                  stream every state change (requires a ws:// url)
`

var errUsage = errors.New("invalid arguments")

func main() {
	configPath := flag.String("config", "", "Path to the configuration file.")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	rootLogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	// Create a context that cancels when the OS sends an interrupt (Ctrl+C) or termination signal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, rootLogger, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		rootLogger.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.ClientConfig, logger *slog.Logger, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	command, args := args[0], args[1:]

	if command == "watch" {
		return watch(ctx, cfg, logger)
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	caller, err := client.Dial(callCtx, cfg.URL)
	if err != nil {
		return err
	}
	defer caller.Close()

	var result any
	switch command {
	case "state":
		if len(args) != 0 {
			return errUsage
		}
		result, err = caller.State(callCtx)
	case "deposit", "withdraw":
		nums, perr := parseUints(args, 1, 1)
		if perr != nil {
			return perr
		}
		if command == "deposit" {
			result, err = caller.Deposit(callCtx, nums[0])
		} else {
			result, err = caller.Withdraw(callCtx, nums[0])
		}
	case "seed":
		nums, perr := parseUints(args, 2, 4)
		if perr != nil {
			return perr
		}
		if len(nums) == 3 {
			return errUsage
		}
		seed := engine.ReserveState{TokenReserve: nums[0], BaseReserve: nums[1]}
		if len(nums) == 4 {
			seed.PriceRangeMin, seed.PriceRangeMax = nums[2], nums[3]
		}
		result, err = caller.Seed(callCtx, seed)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
	if err != nil {
		return err
	}

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	return out.Encode(result)
}

func watch(ctx context.Context, cfg *config.ClientConfig, logger *slog.Logger) error {
	c, err := client.NewClient(ctx, client.Config{
		URL:           cfg.URL,
		Logger:        logger.With("component", "jsonrpc-client"),
		BufferSize:    cfg.BufferSize,
		MaxReconnects: cfg.MaxReconnects,
	})
	if err != nil {
		return err
	}

	out := json.NewEncoder(os.Stdout)
	for {
		select {
		case state := <-c.State():
			if err := out.Encode(state); err != nil {
				return err
			}
		case err, ok := <-c.Err():
			if ok {
				return err
			}
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// parseUints parses between minArgs and maxArgs unsigned integer arguments.
func parseUints(args []string, minArgs, maxArgs int) ([]uint64, error) {
	if len(args) < minArgs || len(args) > maxArgs {
		return nil, errUsage
	}
	nums := make([]uint64, len(args))
	for i, arg := range args {
		n, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an unsigned integer", errUsage, arg)
		}
		nums[i] = n
	}
	return nums, nil
}
