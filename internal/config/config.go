package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Telegram contains configuration for the bot transport.
type Telegram struct {
	BotToken       string  `toml:"bot_token"`
	BaseURL        string  `toml:"base_url"`
	AuthorizedIDs  []int64 `toml:"authorized_ids"`
	PollTimeout    int     `toml:"poll_timeout"`
	RequestTimeout int     `toml:"request_timeout"`
	UploadTimeout  int     `toml:"upload_timeout"`
}

// Comfy contains configuration for the ComfyUI backend.
type Comfy struct {
	BaseURL        string `toml:"base_url"`
	InputDir       string `toml:"input_dir"`
	OutputDir      string `toml:"output_dir"`
	SubmitRetries  int    `toml:"submit_retries"`
	RetryDelay     int    `toml:"retry_delay"`
	PollInterval   int    `toml:"poll_interval"`
	AwaitTimeout   int    `toml:"await_timeout"`
	RequestTimeout int    `toml:"request_timeout"`
}

// DeepSeek contains configuration for the free-text intent classifier.
type DeepSeek struct {
	Enabled        bool   `toml:"enabled"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Credits contains the account credit economy settings.
type Credits struct {
	InitialBalance int64 `toml:"initial_balance"`
	KeyReward      int64 `toml:"key_reward"`
}

// Workers contains execution pool sizing and ETA reporting settings.
type Workers struct {
	Count          int `toml:"count"`
	QueueDepth     int `toml:"queue_depth"`
	SecondsPerTask int `toml:"seconds_per_task"`
}

// Jobs selects which templates serve the special flows.
type Jobs struct {
	WorkflowDir         string `toml:"workflow_dir"`
	DefaultTemplate     string `toml:"default_template"`
	EditTemplate        string `toml:"edit_template"`
	TextToImageTemplate string `toml:"text_to_image_template"`
}

// Template describes one named ComfyUI workflow and its billing terms.
//
// The node fields name slots in the workflow graph: SeedNode receives a fresh
// random seed per iteration, InputNode the staged input image filename,
// OutputNode the output filename prefix, and PromptNode (optional) free-text
// instructions. PromptField is the input key the prompt is written to and
// defaults to "prompt"; text-to-image graphs use "text".
type Template struct {
	Command      string `toml:"command"`
	DisplayName  string `toml:"display_name"`
	WorkflowFile string `toml:"workflow_file"`
	SeedNode     string `toml:"seed_node"`
	InputNode    string `toml:"input_node"`
	OutputNode   string `toml:"output_node"`
	PromptNode   string `toml:"prompt_node"`
	PromptField  string `toml:"prompt_field"`
	Iterations   int    `toml:"iterations"`
	Cost         int64  `toml:"cost"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for darkroom.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Telegram: bot token, allow-list, transport timeouts
//   - Comfy: backend URL, exchange directories, retry/poll tuning
//   - DeepSeek: free-text intent classification
//   - Credits: initial balance and redemption reward
//   - Workers: execution pool bounds and queue ETA estimate
//   - Jobs + Templates: workflow graph bindings and costs
//   - Logging: log format and level
type Config struct {
	Paths     Paths               `toml:"paths"`
	Telegram  Telegram            `toml:"telegram"`
	Comfy     Comfy               `toml:"comfy"`
	DeepSeek  DeepSeek            `toml:"deepseek"`
	Credits   Credits             `toml:"credits"`
	Workers   Workers             `toml:"workers"`
	Jobs      Jobs                `toml:"jobs"`
	Templates map[string]Template `toml:"templates"`
	Logging   Logging             `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/darkroom/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("darkroom.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WorkflowPath resolves a template's workflow file against the workflow dir.
func (c *Config) WorkflowPath(t Template) string {
	if filepath.IsAbs(t.WorkflowFile) {
		return t.WorkflowFile
	}
	return filepath.Join(c.Jobs.WorkflowDir, t.WorkflowFile)
}

func expandPath(pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		return "", nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if strings.HasPrefix(pathValue, "~/") {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	abs, err := filepath.Abs(pathValue)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	return abs, nil
}

// ExpandPath exposes path expansion for CLI helpers.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the embedded sample configuration to the given path.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
