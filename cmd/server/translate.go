package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dkeye/Babel/internal/domain"
	"github.com/dkeye/Babel/internal/translate"
)

var translateCmd = &cobra.Command{
	Use:   "translate <text>",
	Short: "Translate text once through the configured provider chain",
	Long: `Translate text once through the configured provider chain.

Useful to check provider credentials without starting the server.

Examples:
  babel translate "Good morning" --from en --to es
  babel --env prod translate "Merci" --from fr --to de`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := cmd.Flags().GetString("from")
		if err != nil {
			return fmt.Errorf("failed to read 'from' flag: %w", err)
		}
		to, err := cmd.Flags().GetString("to")
		if err != nil {
			return fmt.Errorf("failed to read 'to' flag: %w", err)
		}
		source, err := domain.ParseLanguage(from)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		target, err := domain.ParseLanguage(to)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		chain, err := translate.BuildChain(cmd.Context(), cfg.Translation, &http.Client{})
		if err != nil {
			return fmt.Errorf("build provider chain: %w", err)
		}

		out, err := chain.Translate(cmd.Context(), strings.Join(args, " "), source.String(), target.String())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	translateCmd.Flags().String("from", "en", "source language")
	translateCmd.Flags().String("to", "es", "target language")
}
