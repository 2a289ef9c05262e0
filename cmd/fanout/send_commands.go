package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/brojonat/fanout/service/config"
	"github.com/brojonat/fanout/service/events"
	"github.com/brojonat/fanout/service/metrics"
	"github.com/brojonat/fanout/service/send"
	solclient "github.com/brojonat/fanout/service/solana"
	"github.com/gagliardetto/solana-go"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func sendCommands() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Send SOL or SPL tokens to many recipients",
		Subcommands: []*cli.Command{
			sendSolCommand(),
			sendTokenCommand(),
			sendMultiCommand(),
		},
	}
}

// commonSendFlags are shared by all send subcommands.
func commonSendFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "rpc-url",
			Usage:    "Solana RPC endpoint URL",
			EnvVars:  []string{"SOLANA_RPC_URL"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "endpoint-label",
			Value:   "mainnet",
			Usage:   "RPC endpoint label used for metrics",
			EnvVars: []string{"SOLANA_RPC_ENDPOINT_LABEL"},
		},
		&cli.StringFlag{
			Name:     "keypair",
			Aliases:  []string{"k"},
			Usage:    "Path to the sender's Solana keygen file",
			EnvVars:  []string{"FANOUT_KEYPAIR"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "recipients-file",
			Aliases: []string{"f"},
			Value:   "-",
			Usage:   "File with recipient addresses (and amounts in paired mode); '-' reads stdin",
		},
		&cli.StringFlag{
			Name:  "mode",
			Value: "uniform",
			Usage: "Recipient parse mode: uniform or paired",
		},
		&cli.IntFlag{
			Name:  "max-recipients",
			Value: config.DefaultMaxRecipients,
			Usage: "Cap on total recipients; excess entries are truncated with a warning",
		},
		&cli.StringFlag{
			Name:    "commitment",
			Value:   "confirmed",
			Usage:   "Target confirmation commitment: processed, confirmed, or finalized",
			EnvVars: []string{"SOLANA_COMMITMENT"},
		},
		&cli.StringFlag{
			Name:    "sponsor-url",
			Usage:   "Fee sponsorship service URL (enables sponsorship of account creation)",
			EnvVars: []string{"SPONSOR_URL"},
		},
		&cli.StringFlag{
			Name:    "sponsor-policy",
			Usage:   "Fee sponsorship policy identifier",
			EnvVars: []string{"SPONSOR_POLICY"},
		},
		&cli.BoolFlag{
			Name:  "self-pay-fallback",
			Value: true,
			Usage: "Fall back to self-paid submission when sponsorship is unavailable",
		},
		&cli.StringFlag{
			Name:    "nats-url",
			Usage:   "NATS URL for publishing progress events (optional)",
			EnvVars: []string{"NATS_URL"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level: debug, info, warn, error",
			EnvVars: []string{"LOG_LEVEL"},
		},
		&cli.BoolFlag{
			Name:    "json",
			Aliases: []string{"j"},
			Usage:   "Output the final session as JSON",
		},
		&cli.StringFlag{
			Name:  "jq",
			Usage: "jq expression applied to the JSON session output",
		},
	}
}

func sendSolCommand() *cli.Command {
	return &cli.Command{
		Name:  "sol",
		Usage: "Send SOL to many recipients",
		Flags: append(commonSendFlags(),
			&cli.StringFlag{
				Name:    "amount",
				Aliases: []string{"a"},
				Usage:   "Uniform SOL amount per recipient (ignored in paired mode)",
			},
		),
		Action: func(c *cli.Context) error {
			assets := []send.AssetSelection{{
				Asset:  send.NativeAsset(),
				Amount: c.String("amount"),
			}}
			return runSend(c, assets)
		},
	}
}

func sendTokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Send an SPL token to many recipients",
		Flags: append(commonSendFlags(),
			&cli.StringFlag{
				Name:     "mint",
				Aliases:  []string{"m"},
				Usage:    "Token mint address",
				Required: true,
			},
			&cli.UintFlag{
				Name:     "decimals",
				Aliases:  []string{"d"},
				Usage:    "Token decimal precision",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "token-program",
				Usage: "Token program owning the mint (defaults to the legacy SPL token program)",
			},
			&cli.StringFlag{
				Name:    "amount",
				Aliases: []string{"a"},
				Usage:   "Uniform token amount per recipient (ignored in paired mode)",
			},
		),
		Action: func(c *cli.Context) error {
			asset, err := parseTokenAsset(c.String("mint"), c.Uint("decimals"), c.String("token-program"))
			if err != nil {
				return err
			}
			assets := []send.AssetSelection{{Asset: asset, Amount: c.String("amount")}}
			return runSend(c, assets)
		},
	}
}

func sendMultiCommand() *cli.Command {
	return &cli.Command{
		Name:  "multi",
		Usage: "Send several assets to the same recipient set in one run",
		Flags: append(commonSendFlags(),
			&cli.StringFlag{
				Name:  "sol",
				Usage: "Uniform SOL amount per recipient (omit to skip SOL)",
			},
			&cli.StringSliceFlag{
				Name:  "token",
				Usage: "Token selection as MINT:DECIMALS:AMOUNT (repeatable)",
			},
		),
		Action: func(c *cli.Context) error {
			var assets []send.AssetSelection
			if sol := c.String("sol"); sol != "" {
				assets = append(assets, send.AssetSelection{Asset: send.NativeAsset(), Amount: sol})
			}
			for _, spec := range c.StringSlice("token") {
				sel, err := parseTokenSelection(spec)
				if err != nil {
					return err
				}
				assets = append(assets, sel)
			}
			if len(assets) == 0 {
				return fmt.Errorf("nothing selected: provide --sol and/or --token")
			}
			return runSend(c, assets)
		},
	}
}

// runSend wires the pipeline from flags and blocks until the session
// terminates, streaming status lines to stderr along the way.
func runSend(c *cli.Context, assets []send.AssetSelection) error {
	logger := setupLogger(c.String("log-level"))

	mode := send.ParseMode(c.String("mode"))
	if mode != send.ParseUniform && mode != send.ParsePaired {
		return fmt.Errorf("invalid mode %q: must be uniform or paired", c.String("mode"))
	}

	rawRecipients, err := readRecipients(c.String("recipients-file"))
	if err != nil {
		return err
	}

	signer, err := send.NewKeypairSignerFromFile(c.String("keypair"))
	if err != nil {
		return err
	}

	// Assemble and validate the application config from flags.
	svcCfg := &config.Config{
		LogLevel:            c.String("log-level"),
		SolanaRPCURL:        c.String("rpc-url"),
		RPCEndpoint:         c.String("endpoint-label"),
		Commitment:          c.String("commitment"),
		SponsorURL:          c.String("sponsor-url"),
		SponsorPolicy:       c.String("sponsor-policy"),
		NATSURL:             c.String("nats-url"),
		NativeBatchSize:     config.DefaultNativeBatchSize,
		TokenBatchSize:      config.DefaultTokenBatchSize,
		CreationBatchSize:   config.DefaultCreationBatchSize,
		MaxRecipients:       c.Int("max-recipients"),
		ConfirmationTimeout: config.DefaultConfirmationTimeout,
		ConfirmationPoll:    config.DefaultConfirmationPoll,
		InterBatchDelay:     config.DefaultInterBatchDelay,
		ResolveAttempts:     config.DefaultResolveAttempts,
	}
	if err := svcCfg.Validate(); err != nil {
		return err
	}

	runCfg := send.FromServiceConfig(svcCfg)
	runCfg.SelfPayFallback = c.Bool("self-pay-fallback")

	m := metrics.NewMetrics(nil)
	client := solclient.NewClient(solclient.NewRPCClient(svcCfg.SolanaRPCURL), svcCfg.RPCEndpoint, m, logger)

	var sponsor *send.SponsorClient
	if svcCfg.SponsorURL != "" {
		sponsor = send.NewSponsorClient(svcCfg.SponsorURL, svcCfg.SponsorPolicy, nil, m, logger)
	}

	var publisher events.Publisher
	if svcCfg.NATSURL != "" {
		jsPub, err := events.NewPublisher(svcCfg.NATSURL, logger)
		if err != nil {
			return fmt.Errorf("connect progress publisher: %w", err)
		}
		defer jsPub.Close()
		publisher = jsPub
	}

	orch := send.NewOrchestrator(client, signer, sponsor, runCfg, publisher, m, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := send.Request{
		RawRecipients:  rawRecipients,
		Mode:           mode,
		Assets:         assets,
		SponsorEnabled: sponsor != nil,
	}

	session := orch.StartSend(ctx, req)

	jsonOutput := c.Bool("json")
	updates := session.Subscribe()
	go func() {
		for snap := range streamUntilDone(session, updates) {
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "[%s] %s\n", snap.Phase, snap.StatusMessage)
			}
		}
	}()

	if err := session.Wait(ctx); err != nil && ctx.Err() != nil {
		// Give the run a moment to settle after cancellation so the final
		// snapshot reflects the aborted state.
		<-session.Done()
	}

	snap := session.Snapshot()
	if err := printSession(snap, jsonOutput, c.String("jq")); err != nil {
		return err
	}

	if snap.Phase == send.PhaseError {
		return fmt.Errorf("send failed: %s", snap.StatusMessage)
	}
	return nil
}

// streamUntilDone adapts the subscription into a channel that closes when
// the session ends.
func streamUntilDone(session *send.Session, updates <-chan send.Snapshot) <-chan send.Snapshot {
	out := make(chan send.Snapshot)
	go func() {
		defer close(out)
		for {
			select {
			case snap := <-updates:
				out <- snap
			case <-session.Done():
				return
			}
		}
	}()
	return out
}

func printSession(snap send.Snapshot, jsonOutput bool, jqFilter string) error {
	if !jsonOutput && jqFilter == "" {
		fmt.Printf("Session %s: %s\n", snap.ID, snap.Phase)
		fmt.Printf("  %s\n", snap.StatusMessage)
		if snap.SkippedInvalid > 0 {
			fmt.Printf("  %d invalid recipients skipped\n", snap.SkippedInvalid)
		}
		if snap.Truncated > 0 {
			fmt.Printf("  %d recipients truncated by cap\n", snap.Truncated)
		}
		for _, sig := range snap.Signatures {
			fmt.Printf("  %s\n", sig)
		}
		return nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if jqFilter == "" {
		fmt.Println(string(data))
		return nil
	}

	query, err := gojq.Parse(jqFilter)
	if err != nil {
		return fmt.Errorf("failed to parse jq filter %q: %w", jqFilter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return fmt.Errorf("failed to compile jq filter %q: %w", jqFilter, err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal session for jq: %w", err)
	}

	iter := code.Run(doc)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return fmt.Errorf("jq filter error: %w", err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal jq result: %w", err)
		}
		fmt.Println(string(out))
	}
	return nil
}

func readRecipients(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read recipients from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read recipients file: %w", err)
	}
	return string(data), nil
}

func parseTokenAsset(mint string, decimals uint, tokenProgram string) (send.AssetDescriptor, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return send.AssetDescriptor{}, fmt.Errorf("invalid mint %q: %w", mint, err)
	}
	if decimals > 18 {
		return send.AssetDescriptor{}, fmt.Errorf("decimals %d out of range", decimals)
	}
	var program solana.PublicKey
	if tokenProgram != "" {
		program, err = solana.PublicKeyFromBase58(tokenProgram)
		if err != nil {
			return send.AssetDescriptor{}, fmt.Errorf("invalid token program %q: %w", tokenProgram, err)
		}
	}
	return send.FungibleAsset(mintKey, uint8(decimals), program), nil
}

// parseTokenSelection parses MINT:DECIMALS:AMOUNT.
func parseTokenSelection(spec string) (send.AssetSelection, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return send.AssetSelection{}, fmt.Errorf("invalid token spec %q: want MINT:DECIMALS:AMOUNT", spec)
	}
	decimals, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return send.AssetSelection{}, fmt.Errorf("invalid decimals in token spec %q: %w", spec, err)
	}
	asset, err := parseTokenAsset(parts[0], uint(decimals), "")
	if err != nil {
		return send.AssetSelection{}, err
	}
	return send.AssetSelection{Asset: asset, Amount: parts[2]}, nil
}
