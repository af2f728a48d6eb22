package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/corpusfork/internal/corpus"
	"github.com/rshade/corpusfork/internal/engine/merge"
)

// Sort orders for count output.
const (
	sortByWord  = "word"
	sortByCount = "count"
)

// NewCountCmd creates the count command, which reports word frequencies.
func NewCountCmd() *cobra.Command {
	var (
		minCount int
		sortBy   string
		split    string
	)

	cmd := &cobra.Command{
		Use:   "count [INPUT]",
		Short: "Count lowercased words",
		Long: `Reads INPUT (or stdin), splits every line into words, lowercases them and
prints "word: count" for every word seen at least --min-count times.

Tokenizers:
  simple  split on space, comma, period and semicolon
  punct   split on any ASCII punctuation or whitespace`,
		Example: `  # Words seen at least 5 times, alphabetically
  corpusfork count corpus.txt

  # Most frequent first, punctuation-aware tokenizer
  corpusfork count --sort count --split punct corpus.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if minCount < 1 {
				return configError(fmt.Errorf("--min-count must be >= 1, got %d", minCount))
			}
			if sortBy != sortByWord && sortBy != sortByCount {
				return configError(fmt.Errorf("--sort must be %q or %q, got %q", sortByWord, sortByCount, sortBy))
			}
			splitter, err := corpus.ParseSplitter(split)
			if err != nil {
				return configError(err)
			}

			policy := merge.NewReducePolicy()
			summary, runErr := runPipeline(cmd, pipelineRun{
				name:   "count",
				input:  inputArg(args),
				work:   corpus.CountFunc(splitter),
				policy: policy,
			})

			if summary == nil {
				return runErr
			}
			// A failed batch only loses its own counts; report the rest.
			counts := corpus.SortedCounts(policy.Counts(), minCount, sortBy == sortByCount)
			if err = corpus.WriteCounts(cmd.OutOrStdout(), counts); err != nil {
				return &ExitError{Code: ExitFailure, Err: fmt.Errorf("writing counts: %w", err)}
			}
			return runErr
		},
	}

	cmd.Flags().IntVar(&minCount, "min-count", corpus.DefaultMinCount, "minimum count for a word to be printed")
	cmd.Flags().StringVar(&sortBy, "sort", sortByWord, "output order: word or count")
	cmd.Flags().StringVar(&split, "split", string(corpus.SplitSimple), "tokenizer: simple or punct")

	return cmd
}
