package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/gptrag/aoai/internal/config"
	"github.com/gptrag/aoai/internal/gateway"
)

const probeText = "connectivity check"

func newVerifyCmd(e *env) *cobra.Command {
	var (
		probe   bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check Azure OpenAI settings",
		Long: `Print the effective Azure OpenAI settings with the key masked and list any
that are missing. With --probe, also embed a short text to confirm the
endpoint, key and embedding deployment work together.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			missing := writeVerifyReport(out, e.cfg.Azure)

			client := e.client()
			if !client.CanComplete() && !client.CanEmbed() {
				return fmt.Errorf("no deployment is usable; set %s and a deployment", config.EnvEndpoint)
			}

			if !probe {
				if len(missing) > 0 {
					fmt.Fprintln(out, "\nSome settings are missing; calls that need them will fail.")
				}
				return nil
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			start := time.Now()
			vec, err := client.Embed(ctx, probeText, gateway.WithoutRetry())
			if err != nil {
				fmt.Fprintf(out, "\nProbe:      FAILED\n")
				return err
			}
			fmt.Fprintf(out, "\nProbe:      ok (dimension %d, %s)\n", len(vec), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "make a live embedding call")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "probe timeout")
	return cmd
}

// writeVerifyReport prints the settings and returns the missing keys.
func writeVerifyReport(w io.Writer, az config.AzureConfig) []string {
	show := func(v string) string {
		if v == "" {
			return "(not set)"
		}
		return v
	}
	key := "(not set)"
	if az.APIKey != "" {
		key = config.MaskSecret(az.APIKey)
	}

	fmt.Fprintf(w, "Endpoint:   %s\n", show(az.Endpoint))
	fmt.Fprintf(w, "API ver:    %s\n", show(az.APIVersion))
	fmt.Fprintf(w, "Completion: %s\n", show(az.CompletionDeployment))
	fmt.Fprintf(w, "Embedding:  %s\n", show(az.EmbeddingDeployment))
	fmt.Fprintf(w, "API key:    %s\n", key)

	missing := az.Missing()
	for _, k := range missing {
		fmt.Fprintf(w, "  missing: %s\n", k)
	}
	return missing
}
