package config

const (
	defaultWorkDir   = "~/.local/share/podscribe/work"
	defaultLogDir    = "~/.local/share/podscribe/logs"
	defaultReviewDir = "~/podscribe/review"
	defaultExportDir = "~/podscribe/published"

	defaultDownloadBinary         = "yt-dlp"
	defaultDownloadAudioFormat    = "m4a"
	defaultDownloadTimeoutSeconds = 1800

	defaultWhisperXModel     = "large-v3-turbo"
	defaultWhisperXVADMethod = "silero"
	defaultWhisperXCacheDir  = "~/.cache/podscribe/whisperx"

	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "google/gemini-3-flash-preview"
	defaultLLMReferer        = "https://github.com/podscribe/podscribe"
	defaultLLMTitle          = "Podscribe"
	defaultLLMTimeoutSeconds = 120

	defaultSegmentDurationSeconds = 600
	defaultProofreadBatchSize     = 40
	defaultTranslationBatchSize   = 50
	defaultMaxUnitRetries         = 3
	defaultValidationThreshold    = 2

	defaultWebhookTimeoutSeconds = 30

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			LogDir:    defaultLogDir,
			ReviewDir: defaultReviewDir,
		},
		Download: Download{
			Binary:         defaultDownloadBinary,
			AudioFormat:    defaultDownloadAudioFormat,
			TimeoutSeconds: defaultDownloadTimeoutSeconds,
		},
		WhisperX: WhisperX{
			Model:     defaultWhisperXModel,
			VADMethod: defaultWhisperXVADMethod,
			Diarize:   true,
			CacheDir:  defaultWhisperXCacheDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Workflow: Workflow{
			SegmentDurationSeconds: defaultSegmentDurationSeconds,
			ProofreadBatchSize:     defaultProofreadBatchSize,
			TranslationBatchSize:   defaultTranslationBatchSize,
			MaxUnitRetries:         defaultMaxUnitRetries,
			ValidationThreshold:    defaultValidationThreshold,
		},
		Translation: Translation{
			Languages: []string{"zh"},
		},
		Publishing: Publishing{
			ExportDir:             defaultExportDir,
			WebhookTimeoutSeconds: defaultWebhookTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
