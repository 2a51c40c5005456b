package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ADMINS", "111, 222")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("MAX_ACTIVE_TICKETS", "")
	t.Setenv("ACTIVE_STATUSES", "")
	t.Setenv("TERMINAL_POLICY", "")
	t.Setenv("DRAFT_TTL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DBDriver != "sqlite" {
		t.Errorf("DBDriver = %q, want sqlite", cfg.DBDriver)
	}
	if cfg.MaxActiveTickets != 3 {
		t.Errorf("MaxActiveTickets = %d, want 3", cfg.MaxActiveTickets)
	}
	if len(cfg.ActiveStatuses) != 3 {
		t.Errorf("ActiveStatuses = %v, want 3 entries", cfg.ActiveStatuses)
	}
	if cfg.TerminalPolicy != PolicyPermissive {
		t.Errorf("TerminalPolicy = %q", cfg.TerminalPolicy)
	}
	if cfg.DraftTTL != 24*time.Hour {
		t.Errorf("DraftTTL = %v", cfg.DraftTTL)
	}
	if len(cfg.AdminIDs) != 2 || cfg.AdminIDs[1] != 222 {
		t.Errorf("AdminIDs = %v", cfg.AdminIDs)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_BadAdmins(t *testing.T) {
	t.Setenv("ADMINS", "12,abc")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric admin id")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			DBDriver:           "sqlite",
			MaxActiveTickets:   3,
			ActiveStatuses:     []string{"new"},
			TerminalPolicy:     PolicyPermissive,
			DraftTTL:           time.Hour,
			DraftSweepInterval: time.Minute,
		}
	}

	t.Run("mysql without dsn", func(t *testing.T) {
		c := base()
		c.DBDriver = "mysql"
		if err := c.Validate(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("mysql from split vars", func(t *testing.T) {
		c := base()
		c.DBDriver = "mysql"
		c.DBHost, c.DBUser, c.DBPass, c.DBName = "db:3306", "bot", "pw", "cashback"
		if err := c.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		want := "bot:pw@tcp(db:3306)/cashback?charset=utf8mb4&parseTime=true"
		if got := c.DSN(); got != want {
			t.Errorf("DSN() = %q, want %q", got, want)
		}
	})

	t.Run("unknown policy", func(t *testing.T) {
		c := base()
		c.TerminalPolicy = "lenient"
		if err := c.Validate(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("misspelled active status", func(t *testing.T) {
		c := base()
		c.ActiveStatuses = []string{"new", "needs-info"}
		if err := c.Validate(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("zero quota", func(t *testing.T) {
		c := base()
		c.MaxActiveTickets = 0
		if err := c.Validate(); err == nil {
			t.Error("expected error")
		}
	})
}
