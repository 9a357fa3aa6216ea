// Package showcase parses showcase service flags and launches the runtime.
package showcase

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	entrypoint "github.com/credencelab/showcase/internal/platform/cmd"
	"github.com/credencelab/showcase/internal/showcase/bridge"
	"github.com/credencelab/showcase/internal/showcase/storage/sqlite"
)

// Config holds showcase command configuration.
type Config struct {
	DBPath      string        `env:"SHOWCASE_DB_PATH" envDefault:"data/showcase.db"`
	AMQPURL     string        `env:"SHOWCASE_AMQP_URL"`
	BridgeQueue string        `env:"SHOWCASE_BRIDGE_QUEUE" envDefault:"credential-definitions"`
	ConsumerTag string        `env:"SHOWCASE_BRIDGE_CONSUMER" envDefault:"showcase-bridge"`
	TractionURL string        `env:"SHOWCASE_TRACTION_URL"`
	WalletKey   string        `env:"SHOWCASE_TRACTION_WALLET_KEY"`
	TokenTTL    time.Duration `env:"SHOWCASE_TRACTION_TOKEN_TTL" envDefault:"10m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The showcase SQLite database path")
	fs.StringVar(&cfg.AMQPURL, "amqp-url", cfg.AMQPURL, "The AMQP broker URL (empty disables the bridge)")
	fs.StringVar(&cfg.BridgeQueue, "bridge-queue", cfg.BridgeQueue, "The credential definition bridge queue")
	fs.StringVar(&cfg.ConsumerTag, "bridge-consumer", cfg.ConsumerTag, "The bridge consumer tag")
	fs.StringVar(&cfg.TractionURL, "traction-url", cfg.TractionURL, "The Traction API base URL")
	fs.StringVar(&cfg.WalletKey, "wallet-key", cfg.WalletKey, "The tenant wallet key for Traction token requests")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "The fallback Traction token lifetime")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the showcase runtime: it opens the store (applying migrations)
// and, when AMQP is configured, drives the credential definition bridge
// until the context is cancelled.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceShowcase, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open showcase store: %w", err)
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				log.Printf("close showcase store: %v", closeErr)
			}
		}()
		log.Printf("showcase store ready at %s", cfg.DBPath)

		if cfg.AMQPURL == "" {
			log.Printf("bridge disabled: no AMQP URL configured")
			<-ctx.Done()
			return nil
		}
		return runBridge(ctx, cfg)
	})
}

func runBridge(ctx context.Context, cfg Config) error {
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return fmt.Errorf("dial amqp broker: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			log.Printf("close amqp connection: %v", closeErr)
		}
	}()

	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open amqp channel: %w", err)
	}

	// Declaring through the publisher keeps queue ownership in one place
	// even though this process only consumes.
	if _, err := bridge.NewPublisher(channel, cfg.BridgeQueue); err != nil {
		return err
	}

	traction, err := bridge.NewTractionClient(bridge.TractionConfig{
		BaseURL:   cfg.TractionURL,
		WalletKey: cfg.WalletKey,
		TokenTTL:  cfg.TokenTTL,
	})
	if err != nil {
		return err
	}
	processor, err := bridge.NewProcessor(traction, log.Printf)
	if err != nil {
		return err
	}

	deliveries, err := bridge.Consume(channel, cfg.BridgeQueue, cfg.ConsumerTag)
	if err != nil {
		return err
	}
	log.Printf("bridge consuming queue %s", cfg.BridgeQueue)

	if err := processor.Run(ctx, deliveries); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
