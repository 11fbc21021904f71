// Package config resolves the paths and settings of one installation. Every
// path derives from a single install root under the operator's home
// directory; components receive the resolved config at construction and
// never read environment state themselves.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/localserve/localserve/internal/fetch"
)

// ContainerModelDir is the mount point of the model store inside the
// inference container. The --model flag of the launch command refers to
// models under this path.
const ContainerModelDir = "/models"

const (
	defaultModelURL  = "https://huggingface.co/TheBloke/Llama-2-7B-Chat-GGUF/resolve/main/llama-2-7b-chat.Q4_K_M.gguf"
	defaultUpdateURL = "https://raw.githubusercontent.com/localserve/localserve/main/deploy/compose.template"
)

// LlamaConfig is the inference service configuration.
type LlamaConfig struct {
	// Image is the container image of the inference engine.
	Image string `yaml:"image"`
	// Host is the bind address of the engine inside the container.
	Host string `yaml:"host"`
	// Port is the engine's listen port.
	Port int `yaml:"port"`
}

func (c *LlamaConfig) validate() error {
	if c.Image == "" {
		return fmt.Errorf("image must be set")
	}
	if c.Port <= 0 {
		return fmt.Errorf("port must be greater than 0")
	}
	return nil
}

// WebUIConfig is the UI service configuration.
type WebUIConfig struct {
	Image string `yaml:"image"`
	// Port is the host port the UI is published on.
	Port int `yaml:"port"`
}

func (c *WebUIConfig) validate() error {
	if c.Image == "" {
		return fmt.Errorf("image must be set")
	}
	if c.Port <= 0 {
		return fmt.Errorf("port must be greater than 0")
	}
	return nil
}

// Config is the configuration.
type Config struct {
	// InstallDir is the install root. ModelDir and UIDataDir default to
	// subdirectories of it.
	InstallDir string `yaml:"installDir"`
	ModelDir   string `yaml:"modelDir"`
	UIDataDir  string `yaml:"uiDataDir"`

	// DefaultModelURL is the model fetched at initialization time when the
	// model store is empty.
	DefaultModelURL string `yaml:"defaultModelUrl"`

	// UpdateURL is the source of deployment-definition updates.
	UpdateURL string `yaml:"updateUrl"`

	Llama LlamaConfig `yaml:"llama"`
	WebUI WebUIConfig `yaml:"webui"`
}

// Default returns the configuration for an installation rooted under the
// given home directory.
func Default(home string) Config {
	root := filepath.Join(home, ".localserve")
	return Config{
		InstallDir:      root,
		ModelDir:        filepath.Join(root, "models"),
		UIDataDir:       filepath.Join(root, "ui-data"),
		DefaultModelURL: defaultModelURL,
		UpdateURL:       defaultUpdateURL,
		Llama: LlamaConfig{
			Image: "ghcr.io/ggml-org/llama.cpp:server",
			Host:  "0.0.0.0",
			Port:  8080,
		},
		WebUI: WebUIConfig{
			Image: "ghcr.io/open-webui/open-webui:main",
			Port:  3000,
		},
	}
}

// Parse reads a configuration file and overlays it on the defaults for the
// given home directory.
func Parse(path, home string) (Config, error) {
	config := Default(home)

	b, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("config: read: %w", err)
	}
	if err := yaml.Unmarshal(b, &config); err != nil {
		return config, fmt.Errorf("config: unmarshal: %w", err)
	}
	return config, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for name, dir := range map[string]string{
		"installDir": c.InstallDir,
		"modelDir":   c.ModelDir,
		"uiDataDir":  c.UIDataDir,
	} {
		if dir == "" {
			return fmt.Errorf("%s must be set", name)
		}
		if !filepath.IsAbs(dir) {
			return fmt.Errorf("%s must be an absolute path", name)
		}
	}
	if c.DefaultModelURL == "" {
		return fmt.Errorf("default model URL must be set")
	}
	if err := c.Llama.validate(); err != nil {
		return fmt.Errorf("llama: %s", err)
	}
	if err := c.WebUI.validate(); err != nil {
		return fmt.Errorf("webui: %s", err)
	}
	return nil
}

// DefaultModelFile returns the filename of the default model.
func (c *Config) DefaultModelFile() (string, error) {
	return fetch.Filename(c.DefaultModelURL)
}
