package main

import (
	"strings"

	"github.com/spf13/cobra"

	"agencyfund/internal/amqp"
)

var sendCmd = &cobra.Command{
	Use:   "send <user-id> <message...>",
	Short: "Queue a chat message for fundbot as if the user had sent it",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := amqp.NewClient(cfg.AMQPURL, amqp.Topology{
			Exchange: cfg.AMQPExchange,
			Inbound:  cfg.AMQPInboundQueue,
		})
		if err != nil {
			return err
		}
		defer client.Close()

		text := strings.Join(args[1:], " ")
		if err := client.PublishInbound(cmd.Context(), args[0], text); err != nil {
			return err
		}
		cmd.Printf("Queued message for %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
}
