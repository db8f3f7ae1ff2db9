package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// maxIterations matches the pool of single-letter output suffixes (A..T).
const maxIterations = 20

// Validate ensures the configuration is usable. Failures here are fatal at
// startup; the daemon must not begin accepting requests on a broken config.
func (c *Config) Validate() error {
	if err := c.validateTelegram(); err != nil {
		return err
	}
	if err := c.validateComfy(); err != nil {
		return err
	}
	if err := c.validateCredits(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateTemplates(); err != nil {
		return err
	}
	if err := c.validateDeepSeek(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTelegram() error {
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/darkroom/config.toml"
		}
		return fmt.Errorf("telegram.bot_token is required. Edit %s (create with 'darkroom config init')", defaultPath)
	}
	return ensurePositiveMap(map[string]int{
		"telegram.poll_timeout":    c.Telegram.PollTimeout,
		"telegram.request_timeout": c.Telegram.RequestTimeout,
		"telegram.upload_timeout":  c.Telegram.UploadTimeout,
	})
}

func (c *Config) validateComfy() error {
	if strings.TrimSpace(c.Comfy.BaseURL) == "" {
		return errors.New("comfy.base_url must be set")
	}
	if strings.TrimSpace(c.Comfy.InputDir) == "" {
		return errors.New("comfy.input_dir must be set")
	}
	if strings.TrimSpace(c.Comfy.OutputDir) == "" {
		return errors.New("comfy.output_dir must be set")
	}
	return ensurePositiveMap(map[string]int{
		"comfy.submit_retries":  c.Comfy.SubmitRetries,
		"comfy.retry_delay":     c.Comfy.RetryDelay,
		"comfy.poll_interval":   c.Comfy.PollInterval,
		"comfy.await_timeout":   c.Comfy.AwaitTimeout,
		"comfy.request_timeout": c.Comfy.RequestTimeout,
	})
}

func (c *Config) validateCredits() error {
	if c.Credits.InitialBalance < 0 {
		return errors.New("credits.initial_balance must not be negative")
	}
	if c.Credits.KeyReward <= 0 {
		return errors.New("credits.key_reward must be positive")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	return ensurePositiveMap(map[string]int{
		"workers.count":            c.Workers.Count,
		"workers.queue_depth":      c.Workers.QueueDepth,
		"workers.seconds_per_task": c.Workers.SecondsPerTask,
	})
}

func (c *Config) validateTemplates() error {
	if len(c.Templates) == 0 {
		return errors.New("at least one [templates.<name>] entry must be configured")
	}
	for name, tpl := range c.Templates {
		if strings.TrimSpace(tpl.WorkflowFile) == "" {
			return fmt.Errorf("templates.%s.workflow_file must be set", name)
		}
		if _, err := os.Stat(c.WorkflowPath(tpl)); err != nil {
			return fmt.Errorf("templates.%s: workflow file %s: %w", name, c.WorkflowPath(tpl), err)
		}
		if strings.TrimSpace(tpl.SeedNode) == "" {
			return fmt.Errorf("templates.%s.seed_node must be set", name)
		}
		if strings.TrimSpace(tpl.OutputNode) == "" {
			return fmt.Errorf("templates.%s.output_node must be set", name)
		}
		if tpl.Command != "" && !strings.HasPrefix(tpl.Command, "/") {
			return fmt.Errorf("templates.%s.command must start with '/'", name)
		}
		if tpl.Iterations < 1 || tpl.Iterations > maxIterations {
			return fmt.Errorf("templates.%s.iterations must be between 1 and %d", name, maxIterations)
		}
		if tpl.Cost < 0 {
			return fmt.Errorf("templates.%s.cost must not be negative", name)
		}
	}
	if _, ok := c.Templates[c.Jobs.DefaultTemplate]; !ok {
		return fmt.Errorf("jobs.default_template %q is not a configured template", c.Jobs.DefaultTemplate)
	}
	if c.Jobs.EditTemplate != "" {
		tpl, ok := c.Templates[c.Jobs.EditTemplate]
		if !ok {
			return fmt.Errorf("jobs.edit_template %q is not a configured template", c.Jobs.EditTemplate)
		}
		if strings.TrimSpace(tpl.PromptNode) == "" {
			return fmt.Errorf("jobs.edit_template %q must configure prompt_node", c.Jobs.EditTemplate)
		}
	}
	if c.Jobs.TextToImageTemplate != "" {
		tpl, ok := c.Templates[c.Jobs.TextToImageTemplate]
		if !ok {
			return fmt.Errorf("jobs.text_to_image_template %q is not a configured template", c.Jobs.TextToImageTemplate)
		}
		if strings.TrimSpace(tpl.PromptNode) == "" {
			return fmt.Errorf("jobs.text_to_image_template %q must configure prompt_node", c.Jobs.TextToImageTemplate)
		}
	}
	return nil
}

func (c *Config) validateDeepSeek() error {
	if !c.DeepSeek.Enabled {
		return nil
	}
	if strings.TrimSpace(c.DeepSeek.APIKey) == "" {
		return errors.New("deepseek.api_key must be set when deepseek.enabled is true")
	}
	if c.DeepSeek.TimeoutSeconds <= 0 {
		return errors.New("deepseek.timeout_seconds must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
