package config

const (
	defaultDataDir        = "~/.local/share/darkroom"
	defaultLogDir         = "~/.local/share/darkroom/logs"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultPollTimeout    = 30
	defaultRequestTimeout = 10
	defaultUploadTimeout  = 30
	defaultTelegramAPI    = "https://api.telegram.org"
	defaultComfyBaseURL   = "http://127.0.0.1:8188"
	defaultSubmitRetries  = 3
	defaultRetryDelay     = 2
	defaultPollInterval   = 2
	defaultAwaitTimeout   = 300
	defaultComfyTimeout   = 10
	defaultDeepSeekURL    = "https://api.deepseek.com"
	defaultDeepSeekModel  = "deepseek-chat"
	defaultDeepSeekWait   = 30
	defaultInitialBalance = 10
	defaultKeyReward      = 100
	defaultWorkerCount    = 4
	defaultQueueDepth     = 64
	defaultSecondsPerTask = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Telegram: Telegram{
			BaseURL:        defaultTelegramAPI,
			PollTimeout:    defaultPollTimeout,
			RequestTimeout: defaultRequestTimeout,
			UploadTimeout:  defaultUploadTimeout,
		},
		Comfy: Comfy{
			BaseURL:        defaultComfyBaseURL,
			SubmitRetries:  defaultSubmitRetries,
			RetryDelay:     defaultRetryDelay,
			PollInterval:   defaultPollInterval,
			AwaitTimeout:   defaultAwaitTimeout,
			RequestTimeout: defaultComfyTimeout,
		},
		DeepSeek: DeepSeek{
			BaseURL:        defaultDeepSeekURL,
			Model:          defaultDeepSeekModel,
			TimeoutSeconds: defaultDeepSeekWait,
		},
		Credits: Credits{
			InitialBalance: defaultInitialBalance,
			KeyReward:      defaultKeyReward,
		},
		Workers: Workers{
			Count:          defaultWorkerCount,
			QueueDepth:     defaultQueueDepth,
			SecondsPerTask: defaultSecondsPerTask,
		},
		Templates: map[string]Template{},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
