package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTelegram()
	c.normalizeComfy()
	c.normalizeDeepSeek()
	c.normalizeWorkers()
	c.normalizeJobs()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Jobs.WorkflowDir != "" {
		if c.Jobs.WorkflowDir, err = expandPath(c.Jobs.WorkflowDir); err != nil {
			return fmt.Errorf("jobs.workflow_dir: %w", err)
		}
	}
	if c.Comfy.InputDir != "" {
		if c.Comfy.InputDir, err = expandPath(c.Comfy.InputDir); err != nil {
			return fmt.Errorf("comfy.input_dir: %w", err)
		}
	}
	if c.Comfy.OutputDir != "" {
		if c.Comfy.OutputDir, err = expandPath(c.Comfy.OutputDir); err != nil {
			return fmt.Errorf("comfy.output_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeTelegram() {
	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	c.Telegram.BaseURL = strings.TrimRight(strings.TrimSpace(c.Telegram.BaseURL), "/")
	if c.Telegram.BaseURL == "" {
		c.Telegram.BaseURL = defaultTelegramAPI
	}
}

func (c *Config) normalizeComfy() {
	c.Comfy.BaseURL = strings.TrimRight(strings.TrimSpace(c.Comfy.BaseURL), "/")
	if c.Comfy.BaseURL == "" {
		c.Comfy.BaseURL = defaultComfyBaseURL
	}
}

func (c *Config) normalizeDeepSeek() {
	c.DeepSeek.APIKey = strings.TrimSpace(c.DeepSeek.APIKey)
	c.DeepSeek.BaseURL = strings.TrimRight(strings.TrimSpace(c.DeepSeek.BaseURL), "/")
	if c.DeepSeek.BaseURL == "" {
		c.DeepSeek.BaseURL = defaultDeepSeekURL
	}
	if strings.TrimSpace(c.DeepSeek.Model) == "" {
		c.DeepSeek.Model = defaultDeepSeekModel
	}
}

func (c *Config) normalizeWorkers() {
	if c.Workers.Count == 0 {
		c.Workers.Count = defaultWorkerCount
	}
	if c.Workers.QueueDepth == 0 {
		c.Workers.QueueDepth = defaultQueueDepth
	}
	if c.Workers.SecondsPerTask == 0 {
		c.Workers.SecondsPerTask = defaultSecondsPerTask
	}
}

func (c *Config) normalizeJobs() {
	if c.Jobs.DefaultTemplate == "" && len(c.Templates) == 1 {
		for name := range c.Templates {
			c.Jobs.DefaultTemplate = name
		}
	}
	for name, tpl := range c.Templates {
		if strings.TrimSpace(tpl.PromptField) == "" {
			tpl.PromptField = "prompt"
			c.Templates[name] = tpl
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
