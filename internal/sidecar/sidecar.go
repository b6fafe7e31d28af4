// Package sidecar is the Init Side-car of spec.md §4.8: the same binary
// runs as a pod's init container (subcommand "fetch", staging declared
// inputs before the main container starts) and as a post-phase container
// alongside it (subcommand "push", staging declared outputs back to the
// Artifact Store only once the main container has exited zero). Grounded
// on the teacher's thin cmd/ entrypoints that do nothing but parse env,
// build a client, and call one package function.
package sidecar

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/flowmium-io/flowmium/internal/artifacts"
	"github.com/flowmium-io/flowmium/internal/platform/logger"
	"github.com/flowmium-io/flowmium/internal/types"
)

// mainExitCodeFile must match the k8sdriver's wrapped main-container path
// (spec.md §9 "env-variable inputs and filesystem conventions"). A var
// rather than a const so tests can point it at a scratch directory.
var mainExitCodeFile = "/var/run/flowmium/.flowmium-exit-code"

const exitCodePollInterval = 50 * time.Millisecond

// Config is the side-car's env-derived task scope: which flow it belongs
// to and which inputs/outputs this one task declared.
type Config struct {
	FlowID  uint64
	Inputs  []types.InputRef
	Outputs []types.OutputRef
}

// LoadConfigFromEnv parses FLOWMIUM_FLOW_ID/FLOWMIUM_INPUTS/FLOWMIUM_OUTPUTS,
// the JSON-encoded env vars the Cluster Driver's pod spec builder sets
// (spec.md §4.8).
func LoadConfigFromEnv() (Config, error) {
	var cfg Config

	rawID := strings.TrimSpace(os.Getenv("FLOWMIUM_FLOW_ID"))
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return cfg, fmt.Errorf("parse FLOWMIUM_FLOW_ID=%q: %w", rawID, err)
	}
	cfg.FlowID = id

	if raw := os.Getenv("FLOWMIUM_INPUTS"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.Inputs); err != nil {
			return cfg, fmt.Errorf("parse FLOWMIUM_INPUTS: %w", err)
		}
	}
	if raw := os.Getenv("FLOWMIUM_OUTPUTS"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.Outputs); err != nil {
			return cfg, fmt.Errorf("parse FLOWMIUM_OUTPUTS: %w", err)
		}
	}
	return cfg, nil
}

// Fetch stages every declared input to its local path ahead of the main
// container starting (spec.md §4.8 pre-phase).
func Fetch(ctx context.Context, cfg Config, client artifacts.Client, log *logger.Logger) error {
	for _, in := range cfg.Inputs {
		log.Info("fetching input", "flow_id", cfg.FlowID, "output_name", in.From, "path", in.Path)
		if err := client.Get(ctx, cfg.FlowID, in.From, in.Path); err != nil {
			return fmt.Errorf("fetch input %q: %w", in.From, err)
		}
	}
	return nil
}

// Push waits for the main container's wrapped exit code, then stages every
// declared output back to the Artifact Store — but only if the main
// command exited zero (spec.md §4.8 post-phase). A nonzero or unobserved
// main exit skips the push silently; the pod's own failed container
// already carries the flow to Failed on the next tick, so push does not
// need to fail the pod itself.
func Push(ctx context.Context, cfg Config, client artifacts.Client, log *logger.Logger) error {
	code, err := waitForMainExitCode(ctx)
	if err != nil {
		log.Warn("main exit code unobserved; skipping push", "flow_id", cfg.FlowID, "error", err)
		return nil
	}
	if code != 0 {
		log.Info("main command failed; skipping push", "flow_id", cfg.FlowID, "exit_code", code)
		return nil
	}

	for _, out := range cfg.Outputs {
		log.Info("pushing output", "flow_id", cfg.FlowID, "output_name", out.Name, "path", out.Path)
		if err := client.Put(ctx, cfg.FlowID, out.Name, out.Path); err != nil {
			return fmt.Errorf("push output %q: %w", out.Name, err)
		}
	}
	return nil
}

func waitForMainExitCode(ctx context.Context) (int, error) {
	ticker := time.NewTicker(exitCodePollInterval)
	defer ticker.Stop()
	for {
		raw, err := os.ReadFile(mainExitCodeFile)
		if err == nil {
			code, convErr := strconv.Atoi(strings.TrimSpace(string(raw)))
			if convErr != nil {
				return 0, fmt.Errorf("parse exit code file: %w", convErr)
			}
			return code, nil
		}
		if !os.IsNotExist(err) {
			return 0, fmt.Errorf("read exit code file: %w", err)
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}
