// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Command backing-node runs the Candidate Backing coordinator as a
// standalone process: it reaches the relay chain's Runtime API over
// RPC, signs through an in-memory keystore, and exposes Prometheus
// metrics, wiring every collaborator subsystem in-process (§1's
// out-of-scope collaborators are answered by minimal stand-ins; see
// router.go). The keystore starts empty and no keys are loaded from
// --keystore-path, so this process signs no statements.
package main

import (
	"fmt"
	"net/http"
	"os"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parastate/validator-node/dot/parachain/backing"
	candidatevalidation "github.com/parastate/validator-node/dot/parachain/candidate-validation"
	"github.com/parastate/validator-node/dot/parachain/dispute"
	"github.com/parastate/validator-node/dot/parachain/overseer"
	"github.com/parastate/validator-node/dot/parachain/runtime"
	parachaintypes "github.com/parastate/validator-node/dot/parachain/types"
	"github.com/parastate/validator-node/internal/config"
	"github.com/parastate/validator-node/internal/log"
	"github.com/parastate/validator-node/internal/metrics"
	"github.com/parastate/validator-node/lib/keystore"
)

var rootLogger = log.NewFromGlobal(log.AddContext("pkg", "backing-node"))

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("backing_node")
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "backing-node",
		Short: "Run the candidate backing coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			cfg := config.Default()
			if err := v.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("unmarshal config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("rpc-endpoint", "", "relay chain RPC endpoint (e.g. ws://127.0.0.1:9944)")
	flags.String("keystore-path", "", "path to the validator's signing keystore")
	flags.Uint32("para-id", 0, "parachain ID this node backs candidates for")
	flags.String("log-level", "info", "log verbosity (error|warn|info|debug|trace)")
	flags.String("metrics-bind", "127.0.0.1:9944", "address the Prometheus metrics endpoint listens on")
	flags.Int("runtime-cache-size", 1024, "max number of cached Runtime API answers")

	return cmd
}

func run(cfg config.BackingConfig) error {
	switch cfg.LogLevel {
	case "error":
		log.SetGlobalLevel(log.LevelError)
	case "warn":
		log.SetGlobalLevel(log.LevelWarn)
	case "debug":
		log.SetGlobalLevel(log.LevelDebug)
	case "trace":
		log.SetGlobalLevel(log.LevelTrace)
	default:
		log.SetGlobalLevel(log.LevelInfo)
	}
	rootLogger.Infof("starting backing node %s for para %d", cfg.NodeID, cfg.ParaID)

	rpcClient, err := gsrpc.NewSubstrateAPI(cfg.RPCEndpoint)
	if err != nil {
		return fmt.Errorf("connect to relay chain at %s: %w", cfg.RPCEndpoint, err)
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	go serveMetrics(cfg.MetricsBind, reg)

	runtimeCh := make(chan any, 64)
	candValCh := make(chan any, 64)
	disputeCoord := dispute.NewCoordinator()

	rt := runtime.NewAPI(rpcClient.Client, int64(cfg.RuntimeCacheSize))
	cv := candidatevalidation.NewCandidateValidation(noopExecutor{})

	rtr := newRouter(runtimeCh, candValCh, disputeCoord.Inbox())

	ks := keystore.NewBasic()
	fetcher := backing.NewSenderAncestryFetcher(rtr)
	coordinator := backing.NewCoordinator(ks, fetcher, backing.NewBlake2bErasureCoder())
	coordinator.SetMetrics(m)

	// The coordinator is driven directly rather than through
	// overseer.Overseer: Overseer's Start() hands each registered
	// subsystem a Sender that only loops messages back to that same
	// subsystem's own inbox (it fans out active-leaves signals, not
	// inter-subsystem calls), so cross-subsystem routing here goes
	// through router instead. A real deployment's chain-head follower
	// (out of scope, §1) would call coordinator.ProcessActiveLeavesUpdate
	// as new relay-chain blocks arrive.
	coordinatorCh := make(chan any)
	go func() {
		if err := coordinator.Run(&overseer.Context{Receiver: coordinatorCh, Sender: rtr}); err != nil {
			rootLogger.Errorf("coordinator exited: %s", err)
		}
	}()

	go rt.Run(&overseer.Context{Receiver: runtimeCh, Sender: rtr})
	go cv.Run(&overseer.Context{Receiver: candValCh, Sender: rtr})
	go disputeCoord.Run()

	select {}
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		rootLogger.Errorf("metrics server: %s", err)
	}
}

// noopExecutor stands in for the out-of-scope WASM parachain runtime
// (§1): it reports every candidate invalid rather than pretending to
// execute it.
type noopExecutor struct{}

func (noopExecutor) Execute(
	pvd parachaintypes.PersistedValidationData,
	pov parachaintypes.PoV,
) (parachaintypes.CandidateCommitments, error) {
	return parachaintypes.CandidateCommitments{}, fmt.Errorf("candidate execution not wired: out of scope for this node")
}
