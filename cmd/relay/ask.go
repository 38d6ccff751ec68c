package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/research-relay/internal/config"
	"github.com/zhouzirui/research-relay/internal/gateway"
)

func newAskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer one query with the configured gateway and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			cfg, err := config.LoadGateway()
			if err != nil {
				return errors.Wrap(err, "load configuration")
			}
			if err := cfg.Validate(); err != nil {
				return errors.Wrap(err, "invalid configuration")
			}

			gw, err := gateway.New(cmd.Context(), cfg)
			if err != nil {
				return errors.Wrap(err, "research failed")
			}
			answer, err := gw.Invoke(cmd.Context(), query)
			if err != nil {
				return errors.Wrap(err, "research failed")
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), answer)
			return err
		},
	}
}
