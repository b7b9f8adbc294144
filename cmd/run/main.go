package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/wippyai/contract-host/config"
	"github.com/wippyai/contract-host/host"
	"github.com/wippyai/contract-host/scval"
)

func main() {
	var (
		wasmFile   = flag.String("wasm", "", "Path to contract wasm file")
		funcName   = flag.String("func", "", "Function to invoke")
		argsHex    = flag.String("args", "", "Arguments as hex CBOR of a Vec value")
		configFile = flag.String("config", "", "Path to TOML config (optional)")
		cpuLimit   = flag.Uint64("cpu", 0, "CPU budget limit (overrides config)")
		memLimit   = flag.Uint64("mem", 0, "Memory budget limit (overrides config)")
		unlimited  = flag.Bool("unlimited", false, "Run without budget limits")
		verbose    = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	if *wasmFile == "" || *funcName == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -wasm <file.wasm> -func <name> [-args <hex>] [-config host.toml]")
		fmt.Fprintln(os.Stderr, "       [-cpu N] [-mem N] [-unlimited] [-v]")
		os.Exit(1)
	}

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *cpuLimit > 0 {
		cfg.Budget.CPULimit = *cpuLimit
	}
	if *memLimit > 0 {
		cfg.Budget.MemLimit = *memLimit
	}
	if *unlimited {
		cfg.Budget.Unlimited = true
	}
	if *verbose {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}

	if err := run(cfg, *wasmFile, *funcName, *argsHex); err != nil {
		fmt.Fprintln(os.Stderr, newPrinter(os.Stderr).errorLine(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, wasmFile, funcName, argsHex string) error {
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	code, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	args, err := parseArgs(argsHex, cfg.Limits().Wire)
	if err != nil {
		return err
	}

	h := host.New(cfg.HostOptions(logger)...)
	defer func() { _ = h.Close(ctx) }()

	addr, err := h.RegisterContract(code)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	p := newPrinter(os.Stdout)
	p.title(fmt.Sprintf("%s  %x", funcName, addr.ID[:8]))

	res, callErr := h.InvokeFunction(ctx, addr, funcName, args)
	if callErr == nil {
		p.result(res)
	}
	p.report(h.Budget())
	return callErr
}

// parseArgs decodes the argument vector. Empty input means no arguments.
func parseArgs(argsHex string, limits scval.Limits) ([]scval.ScVal, error) {
	if argsHex == "" {
		return nil, nil
	}
	data, err := hex.DecodeString(argsHex)
	if err != nil {
		return nil, fmt.Errorf("args: %w", err)
	}
	v, err := scval.Unmarshal(data, limits)
	if err != nil {
		return nil, fmt.Errorf("args: %w", err)
	}
	if v.Type != scval.TypeVec || v.Vec == nil {
		return nil, fmt.Errorf("args: expected Vec, got %s", v.Type)
	}
	return *v.Vec, nil
}
