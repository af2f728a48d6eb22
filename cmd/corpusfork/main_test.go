package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rshade/corpusfork/internal/cli"
	"github.com/rshade/corpusfork/pkg/version"
)

func TestMainComponents(t *testing.T) {
	t.Run("version available", func(t *testing.T) {
		assert.NotEmpty(t, version.GetVersion())
	})

	t.Run("cli root command", func(t *testing.T) {
		root := cli.NewRootCmd(version.GetVersion())
		if assert.NotNil(t, root) {
			assert.Equal(t, "corpusfork", root.Use)
			assert.Equal(t, version.GetVersion(), root.Version)
		}
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error returns 0", nil, cli.ExitOK},
		{"generic error", errors.New("boom"), cli.ExitFailure},
		{"config error", &cli.ExitError{Code: cli.ExitConfig, Err: errors.New("bad workers")}, cli.ExitConfig},
		{
			"wrapped exit error",
			fmt.Errorf("running: %w", &cli.ExitError{Code: cli.ExitConfig, Err: errors.New("bad")}),
			cli.ExitConfig,
		},
		{
			"joined exit error",
			errors.Join(errors.New("outer"), &cli.ExitError{Code: 3, Err: errors.New("inner")}),
			3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
