package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"cashback_bot/models"
)

const (
	PolicyPermissive = "permissive"
	PolicyStrict     = "strict"
)

type Config struct {
	BotToken     string
	BotDebug     bool
	AdminIDs     []int64
	AdminGroupID int64

	DBDriver string
	DBDSN    string
	DBHost   string
	DBUser   string
	DBPass   string
	DBName   string

	CasinosFile string

	MaxActiveTickets int
	ActiveStatuses   []string
	TerminalPolicy   string
	PaidEnabled      bool

	DraftTTL           time.Duration
	DraftSweepInterval time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	HTTPAddr string
	AppEnv   string
	LogLevel string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BotToken:    os.Getenv("BOT_TOKEN"),
		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:       os.Getenv("DB_DSN"),
		DBHost:      os.Getenv("DB_HOST"),
		DBUser:      os.Getenv("DB_USER"),
		DBPass:      os.Getenv("DB_PASS"),
		DBName:      os.Getenv("DB_NAME"),
		CasinosFile: getEnv("CASINOS_FILE", "casinos.json"),
		KafkaTopic:  getEnv("KAFKA_TOPIC", "cashback.tickets"),
		HTTPAddr:    os.Getenv("HTTP_ADDR"),
		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		TerminalPolicy: strings.ToLower(
			getEnv("TERMINAL_POLICY", PolicyPermissive),
		),
		ActiveStatuses: splitList(getEnv("ACTIVE_STATUSES", "new,needs_info,approved")),
		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
	}

	var err error
	if cfg.AdminIDs, err = parseIDs(os.Getenv("ADMINS")); err != nil {
		return nil, fmt.Errorf("ADMINS: %w", err)
	}
	if v := os.Getenv("ADMIN_GROUP_ID"); v != "" {
		if cfg.AdminGroupID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("ADMIN_GROUP_ID: %w", err)
		}
	}
	if cfg.MaxActiveTickets, err = strconv.Atoi(getEnv("MAX_ACTIVE_TICKETS", "3")); err != nil {
		return nil, fmt.Errorf("MAX_ACTIVE_TICKETS: %w", err)
	}
	if cfg.PaidEnabled, err = strconv.ParseBool(getEnv("PAID_ENABLED", "true")); err != nil {
		return nil, fmt.Errorf("PAID_ENABLED: %w", err)
	}
	if cfg.BotDebug, err = strconv.ParseBool(getEnv("BOT_DEBUG", "false")); err != nil {
		return nil, fmt.Errorf("BOT_DEBUG: %w", err)
	}
	if cfg.DraftTTL, err = time.ParseDuration(getEnv("DRAFT_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("DRAFT_TTL: %w", err)
	}
	if cfg.DraftSweepInterval, err = time.ParseDuration(getEnv("DRAFT_SWEEP_INTERVAL", "10m")); err != nil {
		return nil, fmt.Errorf("DRAFT_SWEEP_INTERVAL: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings every command needs. The bot token is
// checked separately by the run command.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DBDriver != "sqlite" && c.DSN() == "" {
		return errors.New("config: DB_DSN or DB_HOST/DB_NAME are required for " + c.DBDriver)
	}
	if c.MaxActiveTickets < 1 {
		return errors.New("config: MAX_ACTIVE_TICKETS must be positive")
	}
	if len(c.ActiveStatuses) == 0 {
		return errors.New("config: ACTIVE_STATUSES is empty")
	}
	for _, st := range c.ActiveStatuses {
		if !models.TicketStatus(st).Valid() {
			return fmt.Errorf("config: unknown status %q in ACTIVE_STATUSES", st)
		}
	}
	if c.TerminalPolicy != PolicyPermissive && c.TerminalPolicy != PolicyStrict {
		return fmt.Errorf("config: unknown TERMINAL_POLICY %q", c.TerminalPolicy)
	}
	if c.DraftTTL <= 0 || c.DraftSweepInterval <= 0 {
		return errors.New("config: DRAFT_TTL and DRAFT_SWEEP_INTERVAL must be positive")
	}
	return nil
}

// DSN returns DB_DSN, or builds one from the split DB_* variables.
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	switch c.DBDriver {
	case "sqlite":
		return "bot.db"
	case "mysql":
		if c.DBHost == "" || c.DBName == "" {
			return ""
		}
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=true",
			c.DBUser, c.DBPass, c.DBHost, c.DBName)
	case "postgres":
		if c.DBHost == "" || c.DBName == "" {
			return ""
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable",
			c.DBHost, c.DBUser, c.DBPass, c.DBName)
	}
	return ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(s) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
