package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gptrag/aoai/internal/gateway"
)

func newCompleteCmd(e *env) *cobra.Command {
	var (
		maxTokens int
		noRetry   bool
	)

	cmd := &cobra.Command{
		Use:   "complete [prompt]",
		Short: "Generate a chat completion for a prompt",
		Long: `Send a prompt to the completion deployment and print the reply.

The prompt is read from the arguments, or from stdin when piped. Prompts over
the completion ceiling are truncated from the end before sending.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := commandInput(cmd, args)
			if err != nil {
				return err
			}

			var opts []gateway.CallOption
			if noRetry {
				opts = append(opts, gateway.WithoutRetry())
			}

			text, err := e.client().Complete(cmd.Context(), prompt, maxTokens, opts...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxTokens, "max-tokens", gateway.DefaultMaxOutputTokens, "maximum tokens to generate")
	cmd.Flags().BoolVar(&noRetry, "no-retry", false, "fail immediately when rate limited")
	return cmd
}
