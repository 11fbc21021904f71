package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default("/home/op")
	assert.Equal(t, "/home/op/.localserve", c.InstallDir)
	assert.Equal(t, "/home/op/.localserve/models", c.ModelDir)
	assert.Equal(t, "/home/op/.localserve/ui-data", c.UIDataDir)
	require.NoError(t, c.Validate())

	name, err := c.DefaultModelFile()
	require.NoError(t, err)
	assert.Equal(t, "llama-2-7b-chat.Q4_K_M.gguf", name)
}

func TestParseOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
modelDir: /mnt/big-disk/models
llama:
  image: ghcr.io/ggml-org/llama.cpp:server-cuda
  host: 0.0.0.0
  port: 9090
`), 0644))

	c, err := Parse(path, "/home/op")
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	// Overridden values.
	assert.Equal(t, "/mnt/big-disk/models", c.ModelDir)
	assert.Equal(t, 9090, c.Llama.Port)
	assert.Equal(t, "ghcr.io/ggml-org/llama.cpp:server-cuda", c.Llama.Image)
	// Everything else keeps its default.
	assert.Equal(t, "/home/op/.localserve", c.InstallDir)
	assert.NotEmpty(t, c.DefaultModelURL)
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "nope.yaml"), "/home/op")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tcs := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "relative install dir", mutate: func(c *Config) { c.InstallDir = "relative/path" }},
		{name: "empty model dir", mutate: func(c *Config) { c.ModelDir = "" }},
		{name: "empty model URL", mutate: func(c *Config) { c.DefaultModelURL = "" }},
		{name: "no llama image", mutate: func(c *Config) { c.Llama.Image = "" }},
		{name: "bad llama port", mutate: func(c *Config) { c.Llama.Port = 0 }},
		{name: "bad webui port", mutate: func(c *Config) { c.WebUI.Port = -1 }},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			c := Default("/home/op")
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
