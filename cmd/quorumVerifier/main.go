package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/client"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/config"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/ledger"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/logger"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/transport"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/transport/rpc"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

func main() {
	defaults := config.DefaultClientConfig()

	app := &cli.App{
		Name:  "quorum-verifier",
		Usage: "Verify logs and receipts served by an untrusted node",
		Description: `A light client that checks committee attestations before trusting anything a node returns.

Every log and receipt is verified against a quorum of committee signatures.
Verified receipts are cached in a local trust store.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Aliases: []string{"rpc"},
				Usage:   "Node RPC endpoint; subscriptions need ws:// or wss://",
				Value:   defaults.RpcUrl,
				EnvVars: []string{config.EnvQVRPCURL},
			},
			&cli.StringFlag{
				Name:    "persistence-type",
				Usage:   fmt.Sprintf("Trust store backend: %s", config.GetSupportedPersistenceTypesString()),
				Value:   defaults.Persistence.Type.String(),
				EnvVars: []string{config.EnvQVPersistenceType},
			},
			&cli.StringFlag{
				Name:    "data-path",
				Usage:   "Badger data directory",
				EnvVars: []string{config.EnvQVDataPath},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis address (host:port)",
				EnvVars: []string{config.EnvQVRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvQVRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				EnvVars: []string{config.EnvQVRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Prefix for every Redis key",
				EnvVars: []string{config.EnvQVRedisKeyPrefix},
			},
			&cli.Float64Flag{
				Name:    "requests-per-second",
				Usage:   "Query rate limit, 0 disables it",
				Value:   defaults.RequestsPerSecond,
				EnvVars: []string{config.EnvQVRequestsPerSecond},
			},
			&cli.IntFlag{
				Name:    "burst",
				Usage:   "Query rate limit burst",
				Value:   defaults.Burst,
				EnvVars: []string{config.EnvQVBurst},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvQVVerbose},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "committee",
				Usage:  "Fetch the committee from the node and pin it in the trust store",
				Action: committeeCommand,
			},
			{
				Name:  "logs",
				Usage: "Fetch logs and print those that verify",
				Flags: append(logFilterFlags(),
					&cli.BoolFlag{
						Name:  "certify",
						Usage: "Print a self-contained certificate for each log",
					},
				),
				Action: logsCommand,
			},
			{
				Name:   "watch-logs",
				Usage:  "Stream verified logs until interrupted",
				Flags:  logFilterFlags(),
				Action: watchLogsCommand,
			},
			{
				Name:  "receipts",
				Usage: "List verified receipts one page at a time",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "address",
						Usage: "Only receipts of transactions involving this address",
					},
					&cli.Uint64Flag{
						Name:  "since",
						Usage: "Unix seconds of the earliest confirmation to include",
					},
					&cli.StringFlag{
						Name:  "cursor",
						Usage: "Cursor returned with the previous page",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Page size",
						Value: transport.DefaultPageLimit,
					},
				},
				Action: receiptsCommand,
			},
			{
				Name:  "watch-receipts",
				Usage: "Stream verified receipts until interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "address",
						Usage: "Only receipts of transactions involving this address",
					},
					&cli.Uint64Flag{
						Name:  "since",
						Usage: "Unix seconds of the earliest confirmation to include",
					},
				},
				Action: watchReceiptsCommand,
			},
			{
				Name:  "wait",
				Usage: "Block until a timestamp is past perfect",
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:     "timestamp",
						Aliases:  []string{"ts"},
						Usage:    "Unix seconds",
						Required: true,
					},
				},
				Action: waitCommand,
			},
			{
				Name:  "receipt",
				Usage: "Show a cached certified receipt",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "tx-hash",
						Usage:    "Transaction hash",
						Required: true,
					},
				},
				Action: receiptCommand,
			},
			{
				Name:  "send-tx",
				Usage: "Submit a signed raw transaction",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "raw",
						Usage:    "Signed transaction (hex)",
						Required: true,
					},
				},
				Action: sendTxCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func logFilterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "address",
			Usage: "Emitting contract address, repeatable",
		},
		&cli.StringSliceFlag{
			Name:  "topic0",
			Usage: "Accepted first topic, repeatable",
		},
		&cli.Uint64Flag{
			Name:  "from",
			Usage: "Unix seconds lower bound",
		},
		&cli.Uint64Flag{
			Name:  "to",
			Usage: "Unix seconds upper bound",
		},
	}
}

func parseClientConfig(c *cli.Context) (*config.ClientConfig, error) {
	persistenceType, err := config.ParsePersistenceType(c.String("persistence-type"))
	if err != nil {
		return nil, err
	}
	return &config.ClientConfig{
		RpcUrl: c.String("rpc-url"),
		Persistence: config.PersistenceConfig{
			Type:     persistenceType,
			DataPath: c.String("data-path"),
			Redis: config.RedisConfig{
				Address:   c.String("redis-address"),
				Password:  c.String("redis-password"),
				DB:        c.Int("redis-db"),
				KeyPrefix: c.String("redis-key-prefix"),
			},
		},
		RequestsPerSecond: c.Float64("requests-per-second"),
		Burst:             c.Int("burst"),
		Debug:             c.Bool("verbose"),
		Verbose:           c.Bool("verbose"),
	}, nil
}

func parseLogFilter(c *cli.Context) (transport.LogFilter, error) {
	var filter transport.LogFilter
	for _, a := range c.StringSlice("address") {
		if !common.IsHexAddress(a) {
			return filter, fmt.Errorf("invalid address: %s", a)
		}
		filter.Addresses = append(filter.Addresses, common.HexToAddress(a))
	}

	var topic0 []common.Hash
	for _, t := range c.StringSlice("topic0") {
		b, err := hexutil.Decode(t)
		if err != nil || len(b) != common.HashLength {
			return filter, fmt.Errorf("invalid topic: %s", t)
		}
		topic0 = append(topic0, common.BytesToHash(b))
	}
	if len(topic0) > 0 {
		filter.Topics = [][]common.Hash{topic0}
	}

	if c.IsSet("from") {
		from := types.FromSeconds(c.Uint64("from"))
		filter.FromTime = &from
	}
	if c.IsSet("to") {
		to := types.FromSeconds(c.Uint64("to"))
		filter.ToTime = &to
	}
	return filter, nil
}

// session holds everything a command needs and releases it on close
type session struct {
	client *client.Client
	logger *zap.Logger
	cfg    *config.ClientConfig
}

func (s *session) close() {
	if err := s.client.Close(); err != nil {
		s.logger.Sugar().Warnw("Failed to close client", "error", err)
	}
	_ = s.logger.Sync()
}

func newSession(c *cli.Context) (*session, error) {
	cfg, err := parseClientConfig(c)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	adapterCfg := rpc.DefaultAdapterConfig()
	adapterCfg.RequestsPerSecond = cfg.RequestsPerSecond
	adapterCfg.Burst = cfg.Burst

	node, err := rpc.Dial(c.Context, cfg.RpcUrl, adapterCfg, l)
	if err != nil {
		return nil, err
	}

	store, err := newStore(&cfg.Persistence, l)
	if err != nil {
		node.Close()
		return nil, fmt.Errorf("failed to open trust store: %w", err)
	}

	if cfg.Verbose {
		l.Sugar().Infow("Quorum verifier configuration",
			"rpc_url", cfg.RpcUrl,
			"persistence", cfg.Persistence.Type,
			"requests_per_second", cfg.RequestsPerSecond,
			"subscriptions", cfg.SupportsSubscriptions())
	}

	return &session{
		client: client.NewClient(node, store, l),
		logger: l,
		cfg:    cfg,
	}, nil
}

// interruptible returns a context cancelled on SIGINT or SIGTERM
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func committeeCommand(c *cli.Context) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	comm, err := s.client.RefreshCommittee(c.Context)
	if err != nil {
		return err
	}
	return printJSON(comm)
}

func logsCommand(c *cli.Context) error {
	filter, err := parseLogFilter(c)
	if err != nil {
		return err
	}

	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	logs, err := s.client.GetVerifiedLogs(c.Context, filter)
	if err != nil {
		return err
	}

	if !c.Bool("certify") {
		return printJSON(logs)
	}
	for _, vl := range logs {
		cl, err := s.client.CertifyLog(c.Context, vl)
		if err != nil {
			return fmt.Errorf("failed to certify log of %s: %w", vl.TxHash.Hex(), err)
		}
		if err := printJSON(cl); err != nil {
			return err
		}
	}
	return nil
}

func watchLogsCommand(c *cli.Context) error {
	filter, err := parseLogFilter(c)
	if err != nil {
		return err
	}

	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := interruptible(c.Context)
	defer stop()

	err = s.client.WatchVerifiedLogs(ctx, filter, func(vl *ledger.VerifiableLog) {
		if err := printJSON(vl); err != nil {
			s.logger.Sugar().Errorw("Failed to print log", "error", err)
		}
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// parseAddressFlag returns nil when the address flag is unset.
func parseAddressFlag(c *cli.Context) (*common.Address, error) {
	a := c.String("address")
	if a == "" {
		return nil, nil
	}
	if !common.IsHexAddress(a) {
		return nil, fmt.Errorf("invalid address: %s", a)
	}
	addr := common.HexToAddress(a)
	return &addr, nil
}

func receiptsCommand(c *cli.Context) error {
	address, err := parseAddressFlag(c)
	if err != nil {
		return err
	}

	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	page, err := s.client.GetVerifiedReceipts(c.Context, address, types.FromSeconds(c.Uint64("since")), transport.PageRequest{
		Cursor:      c.String("cursor"),
		Limit:       c.Int("limit"),
		NewestFirst: !c.IsSet("cursor"),
	})
	if err != nil {
		return err
	}
	return printJSON(page)
}

func watchReceiptsCommand(c *cli.Context) error {
	address, err := parseAddressFlag(c)
	if err != nil {
		return err
	}

	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := interruptible(c.Context)
	defer stop()

	err = s.client.WatchReceipts(ctx, address, types.FromSeconds(c.Uint64("since")), func(rr *ledger.ReceiptResponse) {
		if err := printJSON(rr); err != nil {
			s.logger.Sugar().Errorw("Failed to print receipt", "error", err)
		}
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func waitCommand(c *cli.Context) error {
	ts := types.FromSeconds(c.Uint64("timestamp"))

	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := interruptible(c.Context)
	defer stop()

	s.logger.Sugar().Infow("Waiting for past perfect time", "timestamp", ts)
	if err := s.client.WaitPastPerfectTime(ctx, ts); err != nil {
		return err
	}
	fmt.Printf("%s is past perfect\n", ts)
	return nil
}

func receiptCommand(c *cli.Context) error {
	raw, err := hexutil.Decode(c.String("tx-hash"))
	if err != nil || len(raw) != common.HashLength {
		return fmt.Errorf("invalid transaction hash: %s", c.String("tx-hash"))
	}

	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	record, err := s.client.CertifiedReceipt(common.BytesToHash(raw))
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("no certified receipt cached for %s", c.String("tx-hash"))
	}
	return printJSON(record)
}

func sendTxCommand(c *cli.Context) error {
	raw, err := hexutil.Decode(c.String("raw"))
	if err != nil {
		return fmt.Errorf("failed to decode transaction: %w", err)
	}

	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.close()

	txHash, err := s.client.SendRawTransaction(c.Context, raw)
	if err != nil {
		return err
	}
	fmt.Println(txHash.Hex())
	return nil
}
