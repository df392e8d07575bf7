package cli

import (
	"fmt"

	"assessment-engine/internal/config"
	"assessment-engine/internal/infra/memory"
	"github.com/spf13/cobra"
)

// NewBanksCmd groups bank maintenance subcommands.
func NewBanksCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "banks",
		Short: "Manage question banks",
	}
	cmd.AddCommand(newBanksImportCmd(configPath))
	return cmd
}

func newBanksImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import banks from a YAML or JSON file into the durable store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver == config.DriverMemory {
				return fmt.Errorf("banks import needs storage.driver postgres or mongo")
			}
			file, err := memory.LoadBankFile(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := buildService(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer svc.Close()

			for _, bank := range file.Banks() {
				if err := svc.backend.bankStore.SaveBank(ctx, bank); err != nil {
					return fmt.Errorf("save bank %q: %w", bank.ID, err)
				}
				if svc.cache != nil {
					if err := svc.cache.Invalidate(ctx, bank.ID); err != nil {
						log.Warn().Err(err).Str("bank_id", bank.ID).Msg("cache invalidation failed")
					}
				}
				log.Info().Str("bank_id", bank.ID).Int("questions", len(bank.Questions)).Msg("bank imported")
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d questions\n", bank.ID, len(bank.Questions))
			}
			return nil
		},
	}
}
