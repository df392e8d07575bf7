package cli

import (
	"errors"
	"fmt"
	"strings"

	"assessment-engine/internal/command"
	"github.com/spf13/cobra"
)

// NewActivateCmd runs an activate command against the configured stores,
// e.g. `activate --operator alice math101 20 3 60`.
func NewActivateCmd(configPath *string) *cobra.Command {
	var operator string
	cmd := &cobra.Command{
		Use:   "activate <bank> <args...>",
		Short: "Activate, inspect or deactivate a bank",
		Long:  command.ActivateUsage,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			parsed, err := command.Parse("activate " + strings.Join(args, " "))
			if err != nil {
				return err
			}

			svc, err := buildService(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer svc.Close()

			actor := command.Actor{ID: operator, ConversationID: "cli"}
			reply, err := svc.dispatcher.Execute(cmd.Context(), actor, parsed)
			if err != nil {
				return errors.New(command.Explain(err))
			}
			for _, msg := range reply.Messages {
				fmt.Fprintln(cmd.OutOrStdout(), msg)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "", "operator id recorded as enabled_by; must be listed under roles")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}
