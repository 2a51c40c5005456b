package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cashback_bot/catalog"
	"cashback_bot/config"
	"cashback_bot/db"
	"cashback_bot/events"
	"cashback_bot/health"
	"cashback_bot/logger"
	"cashback_bot/services"
	"cashback_bot/telegram"
)

var rootCmd = &cobra.Command{
	Use:          "cashback-bot",
	Short:        "Telegram bot collecting cashback claims for operator review",
	RunE:         runBot,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(referrerCmd)
	rootCmd.AddCommand(catalogCmd)
}

// setup loads and validates the configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.BotToken == "" {
		return errors.New("config: BOT_TOKEN is required")
	}

	conn, err := db.Init(cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close(conn)
	log.Info("🗄 Database ready", zap.String("driver", cfg.DBDriver))

	casinos, err := catalog.LoadFile(cfg.CasinosFile)
	if err != nil {
		log.Warn("⚠️ Using built-in casino list", zap.String("file", cfg.CasinosFile), zap.Error(err))
	}

	producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	defer producer.Close()

	api, err := telegram.Connect(cfg.BotToken, cfg.BotDebug, log)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	bot := services.New(
		telegram.NewGateway(api, log),
		db.NewTicketStore(conn),
		casinos,
		producer,
		services.OptionsFromConfig(cfg),
		log,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.HTTPAddr != "" {
		router := health.NewRouter(func() error { return db.Ping(conn) }, bot.Stats)
		go func() {
			if err := health.Serve(ctx, cfg.HTTPAddr, router, log); err != nil {
				log.Error("Health server failed", zap.Error(err))
			}
		}()
	}

	// Run возвращается после остановки опроса и завершения всех обработчиков
	bot.Run(ctx, telegram.Poll(ctx, api, log))
	return nil
}
