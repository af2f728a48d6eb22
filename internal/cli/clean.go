package cli

import (
	"github.com/spf13/cobra"

	"github.com/rshade/corpusfork/internal/corpus"
	"github.com/rshade/corpusfork/internal/engine/merge"
	"github.com/rshade/corpusfork/internal/logging"
)

// NewCleanCmd creates the clean command, which drops every character not on a whitelist.
func NewCleanCmd() *cobra.Command {
	var whitelistPath string

	cmd := &cobra.Command{
		Use:   "clean [INPUT]",
		Short: "Keep only whitelisted characters",
		Long: `Reads INPUT (or stdin) line by line and writes each line with every
grapheme cluster removed that is not on the whitelist. The line count is
preserved. Without --whitelist a built-in Latin whitelist is used.`,
		Example: `  # Clean with the built-in whitelist
  corpusfork clean corpus.txt > clean.txt

  # Clean with a custom whitelist, one or more characters per line
  corpusfork clean --whitelist chars.dat corpus.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			whitelist, err := loadWhitelist(whitelistPath)
			if err != nil {
				return err
			}
			logging.FromContext(cmd.Context()).Debug().Ctx(cmd.Context()).
				Int("graphemes", whitelist.Len()).Msg("whitelist loaded")

			policy := merge.NewEmitPolicy(cmd.OutOrStdout())
			_, err = runPipeline(cmd, pipelineRun{
				name:   "clean",
				input:  inputArg(args),
				work:   corpus.CleanFunc(whitelist),
				policy: policy,
			})
			logEmitted(cmd, policy)
			return err
		},
	}

	cmd.Flags().StringVar(&whitelistPath, "whitelist", "", "whitelist file (default: built-in)")

	return cmd
}

func loadWhitelist(path string) (*corpus.Whitelist, error) {
	if path == "" {
		return corpus.DefaultWhitelist(), nil
	}
	w, err := corpus.LoadWhitelist(path)
	if err != nil {
		return nil, configError(err)
	}
	return w, nil
}
