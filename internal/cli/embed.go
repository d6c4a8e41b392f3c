package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/gptrag/aoai/internal/batch"
	"github.com/gptrag/aoai/internal/cache"
	"github.com/gptrag/aoai/internal/config"
	"github.com/gptrag/aoai/internal/db"
	"github.com/gptrag/aoai/internal/gateway"
)

// embedder returns the embedder commands should use: client, behind the
// on-disk cache when useCache is set. The returned func releases the cache.
func (e *env) embedder(client *gateway.Client, useCache bool) (gateway.Embedder, func(), error) {
	if !useCache {
		return client, func() {}, nil
	}

	store, closeStore, err := e.openCache()
	if err != nil {
		return nil, nil, err
	}
	return cache.NewEmbedder(client, store, e.cfg.Azure.EmbeddingDeployment, e.logger), closeStore, nil
}

func (e *env) openCache() (*cache.Store, func(), error) {
	path := e.cfg.Cache.Path
	if path == "" {
		var err error
		if path, err = config.DefaultCachePath(); err != nil {
			return nil, nil, fmt.Errorf("resolve cache path: %w", err)
		}
	}
	database, err := db.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}
	return cache.NewStore(database), func() { database.Close() }, nil
}

func newEmbedCmd(e *env) *cobra.Command {
	var (
		noRetry  bool
		useCache bool
	)

	cmd := &cobra.Command{
		Use:   "embed [text]",
		Short: "Embed text and print the vector as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := commandInput(cmd, args)
			if err != nil {
				return err
			}

			emb, release, err := e.embedder(e.client(), useCache || e.cfg.Cache.Enabled)
			if err != nil {
				return err
			}
			defer release()

			var opts []gateway.CallOption
			if noRetry {
				opts = append(opts, gateway.WithoutRetry())
			}

			vec, err := emb.Embed(cmd.Context(), text, opts...)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(vec)
		},
	}

	cmd.Flags().BoolVar(&noRetry, "no-retry", false, "fail immediately when rate limited")
	cmd.Flags().BoolVar(&useCache, "cache", false, "serve and store vectors in the local cache")
	return cmd
}

func newEmbedBatchCmd(e *env) *cobra.Command {
	var (
		concurrency int
		rps         float64
		useCache    bool
		output      string
	)

	cmd := &cobra.Command{
		Use:   "embed-batch <file>",
		Short: "Embed every line of a file",
		Long: `Embed each non-blank line of a file ("-" for stdin) and write one JSON
object per line with either the vector or the error for that input.

Calls run concurrently and are paced client-side; throttled calls still get
their single server-paced retry.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := readLinesFrom(cmd, args[0])
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				return fmt.Errorf("%s contains no input lines", args[0])
			}

			if !cmd.Flags().Changed("concurrency") {
				concurrency = e.cfg.Batch.Concurrency
			}
			if !cmd.Flags().Changed("rps") {
				rps = e.cfg.Batch.RequestsPerSecond
			}

			emb, release, err := e.embedder(e.client(), useCache || e.cfg.Cache.Enabled)
			if err != nil {
				return err
			}
			defer release()

			out := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}

			bar := progressbar.NewOptions(len(inputs),
				progressbar.OptionSetDescription("  Embedding"),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)

			results := batch.Run(cmd.Context(), emb, inputs, batch.Options{
				Concurrency:       concurrency,
				RequestsPerSecond: rps,
				OnProgress:        func() { _ = bar.Add(1) },
			})
			_ = bar.Finish()

			if err := writeBatchResults(out, results); err != nil {
				return err
			}
			if n := batch.Failed(results); n > 0 {
				return fmt.Errorf("%d of %d inputs failed", n, len(results))
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Embedded %d inputs\n", len(results))
			return nil
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "concurrent requests (default from config)")
	cmd.Flags().Float64Var(&rps, "rps", 5, "requests per second across workers, 0 for unpaced (default from config)")
	cmd.Flags().BoolVar(&useCache, "cache", false, "serve and store vectors in the local cache")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write results to a file instead of stdout")
	return cmd
}

func readLinesFrom(cmd *cobra.Command, path string) ([]string, error) {
	if path == "-" {
		return readLines(cmd.InOrStdin())
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return readLines(f)
}

// readLines returns the non-blank lines of r.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return lines, nil
}

type batchLine struct {
	Index     int       `json:"index"`
	Dimension int       `json:"dimension,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func writeBatchResults(w io.Writer, results []batch.Result) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		line := batchLine{Index: r.Index}
		if r.Err != nil {
			line.Error = r.Err.Error()
		} else {
			line.Dimension = len(r.Vector)
			line.Embedding = r.Vector
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
	}
	return nil
}
