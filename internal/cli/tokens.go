package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gptrag/aoai/internal/gateway"
	"github.com/gptrag/aoai/internal/tokenizer"
)

func newTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Count and truncate text by token budget",
	}
	cmd.AddCommand(newTokensCountCmd(), newTokensTruncateCmd())
	return cmd
}

func newTokensCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count [text]",
		Short: "Print the token count of text",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := commandInput(cmd, args)
			if err != nil {
				return err
			}
			est, err := tokenizer.Default()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), est.Count(text))
			return nil
		},
	}
}

func newTokensTruncateCmd() *cobra.Command {
	var ceiling int

	cmd := &cobra.Command{
		Use:   "truncate [text]",
		Short: "Cut text from the end until it fits a token ceiling",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ceiling < 0 {
				return fmt.Errorf("--ceiling must not be negative")
			}
			text, err := commandInput(cmd, args)
			if err != nil {
				return err
			}
			est, err := tokenizer.Default()
			if err != nil {
				return err
			}

			res := tokenizer.Truncate(est, text, ceiling)
			fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			fmt.Fprintf(cmd.ErrOrStderr(), "tokens: %d -> %d (ceiling %d, %d iterations)\n",
				res.Original, res.Final, ceiling, res.Iterations)
			return nil
		},
	}

	cmd.Flags().IntVar(&ceiling, "ceiling", gateway.EmbeddingCeiling, "maximum number of tokens")
	return cmd
}
