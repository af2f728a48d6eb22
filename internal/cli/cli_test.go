package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rshade/corpusfork/internal/config"
	"github.com/rshade/corpusfork/internal/engine"
)

const testVersion = "1.2.0"

// cliRun captures one CLI invocation.
type cliRun struct {
	stdout string
	stderr string
	err    error
}

// runCLI executes the root command with an isolated config home and the
// given environment, stdin and arguments.
func runCLI(t *testing.T, env map[string]string, stdin string, args ...string) cliRun {
	t.Helper()
	config.ResetGlobalConfigForTest()
	t.Cleanup(config.ResetGlobalConfigForTest)

	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	lookup := func(key string) (string, bool) {
		if key == config.EnvHome {
			return home, true
		}
		v, ok := env[key]
		return v, ok
	}

	cmd := NewRootCmdWithArgs(testVersion, lookup)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return cliRun{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestClean(t *testing.T) {
	whitelist := writeTemp(t, "wl.dat", "abc \n")
	input := writeTemp(t, "in.txt", "a1b2c3\nxyz\nc b a!\n")

	res := runCLI(t, nil, "", "clean", "--whitelist", whitelist, "--ordered",
		"--workers", "2", "--batch-size", "2", input)
	require.NoError(t, res.err)
	assert.Equal(t, "abc\n\nc b a\n", res.stdout)
	assert.Contains(t, res.stderr, "clean: 3 lines in 2 batches")
	assert.Contains(t, res.stderr, "took")
}

func TestClean_Stdin(t *testing.T) {
	res := runCLI(t, nil, "Grüße, Welt €\n", "clean", "-")
	require.NoError(t, res.err)
	assert.Equal(t, "Grüße, Welt \n", res.stdout)
}

func TestSubstitute(t *testing.T) {
	table := writeTemp(t, "subs.dat", "äÄ:ae\nß:ss\n")

	res := runCLI(t, nil, "Straße\nÄrger\n", "substitute", "--table", table, "--ordered", "--batch-size", "1")
	require.NoError(t, res.err)
	assert.Equal(t, "Strasse\naerger\n", res.stdout)
}

func TestCount(t *testing.T) {
	input := "a b\na c\nA b\n"

	t.Run("by word", func(t *testing.T) {
		res := runCLI(t, nil, input, "count", "--min-count", "2", "--batch-size", "1", "--workers", "3")
		require.NoError(t, res.err)
		assert.Equal(t, "a: 3\nb: 2\n", res.stdout)
	})

	t.Run("by count", func(t *testing.T) {
		res := runCLI(t, nil, input, "count", "--min-count", "1", "--sort", "count")
		require.NoError(t, res.err)
		assert.Equal(t, "a: 3\nb: 2\nc: 1\n", res.stdout)
	})

	t.Run("default cutoff", func(t *testing.T) {
		res := runCLI(t, nil, input, "count")
		require.NoError(t, res.err)
		assert.Empty(t, res.stdout)
	})

	t.Run("punct tokenizer", func(t *testing.T) {
		res := runCLI(t, nil, "it's it-s\n", "count", "--min-count", "2", "--split", "punct")
		require.NoError(t, res.err)
		assert.Equal(t, "it: 2\ns: 2\n", res.stdout)
	})
}

func TestEmptyInput(t *testing.T) {
	res := runCLI(t, nil, "", "clean")
	require.NoError(t, res.err)
	assert.Empty(t, res.stdout)
	assert.Contains(t, res.stderr, "clean: 0 lines in 0 batches")
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args func(t *testing.T) []string
	}{
		{"zero workers", nil, fixedArgs("clean", "--workers", "0")},
		{"bad env", map[string]string{config.EnvWorkers: "lots"}, fixedArgs("clean")},
		{"bad log format", map[string]string{config.EnvLogFormat: "xml"}, fixedArgs("clean")},
		{"empty whitelist", nil, fixedArgs("clean", "--whitelist", os.DevNull)},
		{"missing whitelist", nil, fixedArgs("clean", "--whitelist", "/nonexistent/wl.dat")},
		{"malformed table", nil, func(t *testing.T) []string {
			return []string{"substitute", "--table", writeTemp(t, "bad.dat", "no colon\n")}
		}},
		{"bad min count", nil, fixedArgs("count", "--min-count", "0")},
		{"bad sort", nil, fixedArgs("count", "--sort", "length")},
		{"bad split", nil, fixedArgs("count", "--split", "regex")},
		{"missing config file", nil, fixedArgs("clean", "--config", "/nonexistent/config.yaml")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, tt.env, "x\n", tt.args(t)...)
			require.Error(t, res.err)
			assert.Equal(t, ExitConfig, ExitCode(res.err), res.err.Error())
			assert.Empty(t, res.stdout)
		})
	}
}

func fixedArgs(args ...string) func(*testing.T) []string {
	return func(*testing.T) []string { return args }
}

func TestRequiresConstraint(t *testing.T) {
	cfgPath := writeTemp(t, "config.yaml", "requires: \">= 99.0.0\"\n")
	res := runCLI(t, nil, "x\n", "clean", "--config", cfgPath)
	require.Error(t, res.err)
	assert.Equal(t, ExitConfig, ExitCode(res.err))
	assert.ErrorIs(t, res.err, config.ErrIncompatibleVersion)
}

func TestMissingInput(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.txt")
	for _, command := range []string{"clean", "substitute", "count"} {
		t.Run(command, func(t *testing.T) {
			res := runCLI(t, nil, "", command, missing)
			require.Error(t, res.err)
			assert.Equal(t, ExitConfig, ExitCode(res.err))
			assert.ErrorIs(t, res.err, os.ErrNotExist)
			assert.Empty(t, res.stdout)
			assert.NotContains(t, res.stderr, "lines in")
		})
	}
}

func TestPrecedence(t *testing.T) {
	cfgPath := writeTemp(t, "config.yaml", "pipeline:\n  workers: 3\n  batch_size: 50\n  ordered: true\n")
	env := map[string]string{config.EnvWorkers: "5", config.EnvChannelCapacity: "4"}

	res := runCLI(t, env, "", "config", "show", "--config", cfgPath, "--workers", "7")
	require.NoError(t, res.err)

	var shown config.Config
	require.NoError(t, yaml.Unmarshal([]byte(res.stdout), &shown))
	assert.Equal(t, 7, shown.Pipeline.Workers, "flag beats env and file")
	assert.Equal(t, 4, shown.Pipeline.ChannelCapacity, "env beats default")
	assert.Equal(t, 50, shown.Pipeline.BatchSize, "file beats default")
	assert.True(t, shown.Pipeline.Ordered)
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "config.yaml")

	res := runCLI(t, nil, "", "config", "init", "--config", path)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Configuration initialized successfully")
	assert.FileExists(t, path)

	res = runCLI(t, nil, "", "config", "init", "--config", path)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "already exists")

	res = runCLI(t, nil, "", "config", "init", "--config", path, "--force")
	require.NoError(t, res.err)

	res = runCLI(t, nil, "", "config", "validate", "--config", path, "--verbose")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Configuration is valid")
	assert.Contains(t, res.stdout, "Batch size:       10000")

	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  workers: -1\n"), 0600))
	res = runCLI(t, nil, "", "config", "validate", "--config", path)
	require.Error(t, res.err)
	assert.Equal(t, ExitConfig, ExitCode(res.err))

	// A broken file does not block re-initialization.
	res = runCLI(t, nil, "", "config", "init", "--config", path, "--force")
	require.NoError(t, res.err)
}

func TestVersion(t *testing.T) {
	res := runCLI(t, nil, "", "version")
	require.NoError(t, res.err)
	assert.Equal(t, testVersion+"\n", res.stdout)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("plain")))
	assert.Equal(t, ExitConfig, ExitCode(&ExitError{Code: ExitConfig}))

	wrapped := errors.Join(errors.New("outer"), &ExitError{Code: 3, Err: errors.New("inner")})
	assert.Equal(t, 3, ExitCode(wrapped))
	assert.Equal(t, "exit status 2", (&ExitError{Code: 2}).Error())
}

func TestRenderSummary(t *testing.T) {
	s := &engine.Summary{
		Lines:        1500,
		SkippedLines: 2,
		Batches:      3,
		Merged:       2,
		Failed:       1,
		Workers:      4,
		BatchSize:    500,
		Ordered:      true,
		Elapsed:      1500 * time.Millisecond,
	}

	plain := renderSummary("count", s, false)
	assert.Contains(t, plain, "count: 1,500 lines in 3 batches")
	assert.Contains(t, plain, "4 workers, batch size 500, ordered")
	assert.Contains(t, plain, "2 undecodable lines skipped")
	assert.Contains(t, plain, "1 batches failed")
	assert.Contains(t, plain, "took 1.5s (1,000 lines/s)")

	styled := renderSummary("count", s, true)
	assert.Contains(t, styled, "1,500")
}
