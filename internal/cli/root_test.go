package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"--version"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		err := cmd.Execute()
		require.NoError(t, err)

		assert.Contains(t, output.String(), "ssegate version")
		assert.Contains(t, output.String(), GetVersion())
	})

	t.Run("version command", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"version"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		require.NoError(t, cmd.Execute())
		assert.Equal(t, "ssegate version "+GetVersion()+"\n", output.String())
	})

	t.Run("help flag", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"--help"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		err := cmd.Execute()
		require.NoError(t, err)

		helpText := output.String()
		assert.Contains(t, helpText, "ssegate")
		assert.Contains(t, helpText, "Server-Sent Events")
		assert.Contains(t, helpText, "serve")
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		configFlag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "", configFlag.DefValue)

		logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
		require.NotNil(t, logLevelFlag)
		assert.Equal(t, "", logLevelFlag.DefValue)
	})

	t.Run("serve flags", func(t *testing.T) {
		assert.NotNil(t, serveCmd.Flags().Lookup("port"))
		assert.NotNil(t, serveCmd.Flags().Lookup("host"))
	})
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.HasPrefix(version, "0."))
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Cleanup(func() {
		cfgFile, logLevel, serveHost, servePort = "", "", "", 0
	})

	cfgFile = t.TempDir() + "/missing.json"
	logLevel = "debug"
	serveHost = "127.0.0.1"
	servePort = 8089

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8089, cfg.Server.Port)

	logLevel = "shouty"
	_, err = loadConfig()
	assert.Error(t, err)
}
