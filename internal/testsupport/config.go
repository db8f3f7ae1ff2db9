// Package testsupport builds throwaway configurations, stores, and fixture
// files for package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"darkroom/internal/config"
)

// stubGraph is a minimal workflow graph carrying one node per slot kind.
const stubGraph = `{
  "3":  {"class_type": "KSampler", "inputs": {"seed": 0, "steps": 20}},
  "10": {"class_type": "LoadImage", "inputs": {"image": "placeholder.png"}},
  "60": {"class_type": "SaveImage", "inputs": {"filename_prefix": "output"}},
  "76": {"class_type": "CLIPTextEncode", "inputs": {"text": ""}}
}`

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories, stub
// workflow graphs, and three templates: an image template bound to /BR, an
// edit template bound to /Edit, and a promptable generation template.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	workflowDir := filepath.Join(base, "workflows")
	if err := os.MkdirAll(workflowDir, 0o755); err != nil {
		t.Fatalf("mkdir workflow dir: %v", err)
	}
	for _, name := range []string{"cleanup.json", "edit.json", "generate.json"} {
		if err := os.WriteFile(filepath.Join(workflowDir, name), []byte(stubGraph), 0o644); err != nil {
			t.Fatalf("write workflow %s: %v", name, err)
		}
	}

	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Telegram.BotToken = "000:test-token"
	cfg.Comfy.InputDir = filepath.Join(base, "comfy-input")
	cfg.Comfy.OutputDir = filepath.Join(base, "comfy-output")
	cfg.Jobs.WorkflowDir = workflowDir
	cfg.Jobs.DefaultTemplate = "background_cleanup"
	cfg.Jobs.EditTemplate = "image_edit"
	cfg.Jobs.TextToImageTemplate = "text_to_image"
	cfg.Templates = map[string]config.Template{
		"background_cleanup": {
			Command:      "/BR",
			WorkflowFile: "cleanup.json",
			SeedNode:     "3",
			InputNode:    "10",
			OutputNode:   "60",
			Iterations:   3,
			Cost:         5,
		},
		"image_edit": {
			Command:      "/Edit",
			WorkflowFile: "edit.json",
			SeedNode:     "3",
			InputNode:    "10",
			OutputNode:   "60",
			PromptNode:   "76",
			PromptField:  "text",
			Iterations:   1,
			Cost:         4,
		},
		"text_to_image": {
			WorkflowFile: "generate.json",
			SeedNode:     "3",
			OutputNode:   "60",
			PromptNode:   "76",
			PromptField:  "text",
			Iterations:   1,
			Cost:         2,
		},
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Comfy.InputDir, cfg.Comfy.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return &cfg
}

// WithInitialBalance overrides the starting balance for new accounts.
func WithInitialBalance(balance int64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Credits.InitialBalance = balance
	}
}

// WithWorkers overrides the execution pool sizing.
func WithWorkers(count, depth int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workers.Count = count
		cfg.Workers.QueueDepth = depth
	}
}
