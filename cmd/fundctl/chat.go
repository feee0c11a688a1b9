package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"agencyfund/internal/amqp"
	"agencyfund/internal/backend"
	"agencyfund/internal/dialogue"
	"agencyfund/internal/ledger"
	"agencyfund/internal/messaging"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the fund assistant from the terminal",
	Long: `Runs the chat assistant locally against the configured ledger and
session backends. Type "help" for commands and "quit" to leave.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		bcfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		factory := backend.NewFactory(nil)

		ledgerStore, err := factory.CreateLedgerStore(ctx, bcfg)
		if err != nil {
			return err
		}
		defer cleanup(ledgerStore.Cleanup)

		sessions, err := factory.CreateSessionStore(ctx, bcfg, nil)
		if err != nil {
			return err
		}
		defer cleanup(sessions.Cleanup)

		var events ledger.EventPublisher
		if publish, _ := cmd.Flags().GetBool("publish"); publish {
			client, err := amqp.NewClient(cfg.AMQPURL, amqp.Topology{
				Exchange: cfg.AMQPExchange,
				Events:   cfg.AMQPEventsQueue,
			})
			if err != nil {
				return err
			}
			defer client.Close()
			events = client
		}

		user, _ := cmd.Flags().GetString("user")
		out := cmd.OutOrStdout()
		controller := dialogue.NewController(
			ledger.NewService(ledgerStore.Store, events),
			sessions.Store,
			messaging.NewConsole(out, "bot> "),
			dialogue.WithTTL(cfg.SessionTTL),
		)

		fmt.Fprintf(out, "Chatting as %s. Type help to see commands, quit to leave.\n", user)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "quit" || line == "exit" {
				break
			}
			controller.Handle(ctx, user, line)
		}
		return scanner.Err()
	},
}

func cleanup(fn backend.CleanupFunc) {
	if fn != nil {
		_ = fn()
	}
}

func init() {
	chatCmd.Flags().String("user", "local", "user id to chat as")
	chatCmd.Flags().Bool("publish", false, "publish ledger events to AMQP")
	rootCmd.AddCommand(chatCmd)
}
