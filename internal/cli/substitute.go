package cli

import (
	"github.com/spf13/cobra"

	"github.com/rshade/corpusfork/internal/corpus"
	"github.com/rshade/corpusfork/internal/engine/merge"
)

// NewSubstituteCmd creates the substitute command, which replaces characters via a table.
func NewSubstituteCmd() *cobra.Command {
	var tablePath string

	cmd := &cobra.Command{
		Use:   "substitute [INPUT]",
		Short: "Replace characters using a substitution table",
		Long: `Reads INPUT (or stdin) line by line and replaces every grapheme cluster
found in the substitution table. Table lines have the form SOURCE:TARGET;
every character of SOURCE is replaced by TARGET. Without --table a built-in
table normalizing typographic quotes, dashes and spaces is used.`,
		Example: `  # Normalize typography with the built-in table
  corpusfork substitute corpus.txt

  # Transliterate umlauts, keeping input order
  printf 'ä:ae\nö:oe\nü:ue\n' > umlauts.dat
  corpusfork substitute --table umlauts.dat --ordered corpus.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := loadSubstitutions(tablePath)
			if err != nil {
				return err
			}

			policy := merge.NewEmitPolicy(cmd.OutOrStdout())
			_, err = runPipeline(cmd, pipelineRun{
				name:   "substitute",
				input:  inputArg(args),
				work:   corpus.SubstituteFunc(table),
				policy: policy,
			})
			logEmitted(cmd, policy)
			return err
		},
	}

	cmd.Flags().StringVar(&tablePath, "table", "", "substitution table file (default: built-in)")

	return cmd
}

func loadSubstitutions(path string) (*corpus.Substitutions, error) {
	if path == "" {
		return corpus.DefaultSubstitutions(), nil
	}
	s, err := corpus.LoadSubstitutions(path)
	if err != nil {
		return nil, configError(err)
	}
	return s, nil
}
