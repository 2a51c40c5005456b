package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cashback_bot/db"
)

var referrerCmd = &cobra.Command{
	Use:   "referrer",
	Short: "Manage referral sources",
}

var referrerAddCmd = &cobra.Command{
	Use:   "add <code> [title]",
	Short: "Register a referral code usable as /start <code>",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runReferrerAdd,
}

var botUsername string

func init() {
	referrerAddCmd.Flags().StringVar(&botUsername, "bot", "", "bot username for printing the deep link")
	referrerCmd.AddCommand(referrerAddCmd)
}

func runReferrerAdd(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	conn, err := db.Init(cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close(conn)

	title := ""
	if len(args) == 2 {
		title = args[1]
	}
	r, err := db.NewTicketStore(conn).CreateReferrer(cmd.Context(), args[0], title)
	if err != nil {
		return err
	}
	log.Info("✅ Referrer created", zap.Uint("id", r.ID), zap.String("code", r.Code))
	if botUsername != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "https://t.me/%s?start=%s\n", strings.TrimPrefix(botUsername, "@"), r.Code)
	}
	return nil
}
