// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBareRootCmd builds a root command without the persistent pre-run so the
// tests exercise cobra wiring without touching config files or the global
// logger.
func newBareRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     rootCmd.Use,
		Short:   rootCmd.Short,
		Version: Version,
	}
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	return cmd
}

// TestRootCmd_VersionFlag tests if the --version flag works correctly.
func TestRootCmd_VersionFlag(t *testing.T) {
	testRootCmd := newBareRootCmd()
	var out bytes.Buffer
	testRootCmd.SetOut(&out)
	testRootCmd.SetErr(&out)
	testRootCmd.SetArgs([]string{"--version"})

	err := testRootCmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), Version)
}

// TestRootCmd_NoArgs tests the behavior when no arguments are provided.
func TestRootCmd_NoArgs(t *testing.T) {
	testRootCmd := newBareRootCmd()
	var out bytes.Buffer
	testRootCmd.SetOut(&out)
	testRootCmd.SetErr(&out)
	testRootCmd.SetArgs([]string{})

	err := testRootCmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Stockpilot is a voice-driven agent")
}

// TestRunCmd_RequiresURL checks the run command's argument contract.
func TestRunCmd_RequiresURL(t *testing.T) {
	runCmd := newRunCmd()
	runCmd.SetArgs([]string{})
	runCmd.SetOut(&bytes.Buffer{})
	runCmd.SetErr(&bytes.Buffer{})

	err := runCmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arg")
}
