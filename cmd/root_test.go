package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subcommandNames(c *cobra.Command) map[string]bool {
	names := make(map[string]bool)
	for _, sub := range c.Commands() {
		names[sub.Name()] = true
	}
	return names
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := subcommandNames(rootCmd)
	for _, name := range []string{"serve", "migrate", "leads", "workflow"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "lead-studio", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestLeadsCommand_HasSubcommands(t *testing.T) {
	names := subcommandNames(leadsCmd)
	for _, name := range []string{"send", "import", "import-output", "input", "metrics", "run-verification", "run-box1"} {
		assert.True(t, names[name], "leads should have subcommand %q", name)
	}
}

func TestLeadsImportCommand_Flags(t *testing.T) {
	for _, name := range []string{"campaign", "file", "map", "dup-strategy", "raw"} {
		assert.NotNil(t, leadsImportCmd.Flags().Lookup(name), "leads import should have --%s flag", name)
	}
	assert.Equal(t, "skip", leadsImportCmd.Flags().Lookup("dup-strategy").DefValue)
}

func TestLeadsInputCommand_Flags(t *testing.T) {
	flag := leadsInputCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "1000", flag.DefValue)
}

func TestLeadsSendCommand_ListsTransitions(t *testing.T) {
	for _, name := range []string{"verification", "compScrap", "box1", "instantly"} {
		assert.Contains(t, leadsSendCmd.Long, name)
	}
}

func TestWorkflowCommand_HasSubcommands(t *testing.T) {
	names := subcommandNames(workflowCmd)
	for _, name := range []string{"import", "show", "runs", "run"} {
		assert.True(t, names[name], "workflow should have subcommand %q", name)
	}

	flag := workflowRunsCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
	assert.NotNil(t, workflowShowCmd.Flags().Lookup("version"))
	assert.NotNil(t, workflowImportCmd.Flags().Lookup("file"))
}
