package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseUrl  string `json:"base_url"`
	Username string `json:"username"`
}

func TestReadConfigMergesLocalOverrides(t *testing.T) {
	dir := t.TempDir()

	err := os.WriteFile(
		filepath.Join(dir, "endeavor.json5"),
		[]byte(`{base_url: "https://www.endeavor.net.br", username: "alice"}`),
		0644,
	)
	require.NoError(t, err)
	err = os.WriteFile(
		filepath.Join(dir, "endeavor.local.json5"),
		[]byte(`{username: "bob"}`),
		0644,
	)
	require.NoError(t, err)

	config, err := ReadConfig[testConfig](filepath.Join(dir, "endeavor.json5"))
	require.NoError(t, err)
	require.Equal(t, "https://www.endeavor.net.br", config.BaseUrl)
	require.Equal(t, "bob", config.Username)
}

func TestReadConfigNotFound(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadConfig[testConfig](filepath.Join(dir, "endeavor.json5"))
	require.True(t, os.IsNotExist(err))
}
