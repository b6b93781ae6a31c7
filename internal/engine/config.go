package engine

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/anatolykoptev/go-kit/env"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration. It is built once by LoadConfig and
// passed to every component.
type Config struct {
	YouTubeAPIKey         string
	YouTubeAPIKeyFallback string
	YouTubeAPIBase        string
	YouTubeAPIRPS         float64
	TranscriptLangs       []string
	TranscriptFallbackCmd string
	FetchTimeout          time.Duration
	FetchRetries          int

	WorkspaceRoot string
	CacheBackend  string
	CacheURL      string

	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int
	PromptFile         string
	Prompt             string // contents of PromptFile

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	SESFrom            string

	HTTPClient *http.Client
}

// Requirements selects which optional groups of keys must be present.
type Requirements struct {
	Summarize bool
	Output    string // "console", "mail" or "ses"
}

// Config keys.
const (
	KeyYouTubeAPIKey         = "YOUTUBE_API_KEY"
	KeyYouTubeAPIKeyFallback = "YOUTUBE_API_KEY_FALLBACK"
	KeyYouTubeAPIBase        = "YOUTUBE_API_BASE"
	KeyYouTubeAPIRPS         = "YOUTUBE_API_RPS"
	KeyTranscriptLangs       = "TRANSCRIPT_LANGS"
	KeyTranscriptFallbackCmd = "TRANSCRIPT_FALLBACK_CMD"
	KeyFetchTimeout          = "FETCH_TIMEOUT"
	KeyFetchRetries          = "FETCH_RETRIES"
	KeyWorkspaceRoot         = "WORKSPACE_ROOT"
	KeyCacheBackend          = "CACHE_BACKEND"
	KeyCacheURL              = "CACHE_URL"
	KeyLLMAPIKey             = "LLM_API_KEY"
	KeyLLMAPIKeyFallbacks    = "LLM_API_KEY_FALLBACKS"
	KeyLLMAPIBase            = "LLM_API_BASE"
	KeyLLMModel              = "LLM_MODEL"
	KeyLLMTemperature        = "LLM_TEMPERATURE"
	KeyLLMMaxTokens          = "LLM_MAX_TOKENS"
	KeyPromptFile            = "PROMPT_FILE"
	KeySMTPHost              = "SMTP_HOST"
	KeySMTPPort              = "SMTP_PORT"
	KeySMTPUser              = "SMTP_USER"
	KeySMTPPassword          = "SMTP_PASSWORD"
	KeyEmailFrom             = "EMAIL_FROM"
	KeyAWSRegion             = "AWS_REGION"
	KeyAWSAccessKeyID        = "AWS_ACCESS_KEY_ID"
	KeyAWSSecretAccessKey    = "AWS_SECRET_ACCESS_KEY"
	KeySESFrom               = "SES_FROM"
)

// RequiredKeys returns the keys that must be set for the given mode, sorted.
func RequiredKeys(req Requirements) []string {
	keys := []string{KeyYouTubeAPIKey}
	if req.Summarize {
		keys = append(keys, KeyLLMAPIKey, KeyPromptFile)
	}
	switch req.Output {
	case "mail":
		keys = append(keys, KeySMTPHost, KeySMTPPort, KeySMTPUser, KeySMTPPassword, KeyEmailFrom)
	case "ses":
		keys = append(keys, KeyAWSRegion, KeySESFrom)
	}
	sort.Strings(keys)
	return keys
}

// LoadConfig reads key=value lines from path, overlays environment variables
// of the same name and validates the keys required by req.
// Every failure is a *ConfigError.
func LoadConfig(path string, req Requirements) (*Config, error) {
	expected := RequiredKeys(req)

	vals, err := godotenv.Read(path)
	if err != nil {
		reason := fmt.Sprintf("cannot read config file: %v", err)
		if errors.Is(err, os.ErrNotExist) {
			reason = "config file not found"
		}
		return nil, &ConfigError{Path: path, Reason: reason, Expected: expected}
	}
	get := func(key, def string) string {
		if v, ok := vals[key]; ok && v != "" {
			def = v
		}
		return env.Str(key, def)
	}
	// getOptional treats a key that is present but empty, in the file or the
	// environment, as an explicit "off" instead of falling back to def.
	getOptional := func(key, def string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		if v, ok := vals[key]; ok {
			return v
		}
		return def
	}

	var missing []string
	for _, k := range expected {
		if get(k, "") == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, &ConfigError{Path: path, Reason: "required keys are not set", Missing: missing, Expected: expected}
	}

	c := &Config{
		YouTubeAPIKey:         get(KeyYouTubeAPIKey, ""),
		YouTubeAPIKeyFallback: get(KeyYouTubeAPIKeyFallback, ""),
		YouTubeAPIBase:        get(KeyYouTubeAPIBase, "https://www.googleapis.com/youtube/v3"),
		TranscriptLangs:       splitList(get(KeyTranscriptLangs, "en")),
		TranscriptFallbackCmd: getOptional(KeyTranscriptFallbackCmd, "yt"),
		WorkspaceRoot:         get(KeyWorkspaceRoot, "data"),
		CacheBackend:          get(KeyCacheBackend, "json"),
		CacheURL:              get(KeyCacheURL, ""),
		LLMAPIKey:             get(KeyLLMAPIKey, ""),
		LLMAPIKeyFallbacks:    splitList(get(KeyLLMAPIKeyFallbacks, "")),
		LLMAPIBase:            get(KeyLLMAPIBase, "https://api.openai.com/v1"),
		LLMModel:              get(KeyLLMModel, "gpt-4o-mini"),
		PromptFile:            get(KeyPromptFile, ""),
		SMTPHost:              get(KeySMTPHost, ""),
		SMTPUser:              get(KeySMTPUser, ""),
		SMTPPassword:          get(KeySMTPPassword, ""),
		EmailFrom:             get(KeyEmailFrom, ""),
		AWSRegion:             get(KeyAWSRegion, ""),
		AWSAccessKeyID:        get(KeyAWSAccessKeyID, ""),
		AWSSecretAccessKey:    get(KeyAWSSecretAccessKey, ""),
		SESFrom:               get(KeySESFrom, ""),
	}

	numErr := func(key string, err error) error {
		return &ConfigError{Path: path, Reason: fmt.Sprintf("%s: %v", key, err), Expected: expected}
	}
	if c.YouTubeAPIRPS, err = strconv.ParseFloat(get(KeyYouTubeAPIRPS, "5"), 64); err != nil {
		return nil, numErr(KeyYouTubeAPIRPS, err)
	}
	if c.FetchTimeout, err = time.ParseDuration(get(KeyFetchTimeout, "15s")); err != nil {
		return nil, numErr(KeyFetchTimeout, err)
	}
	if c.FetchRetries, err = strconv.Atoi(get(KeyFetchRetries, "0")); err != nil {
		return nil, numErr(KeyFetchRetries, err)
	}
	if c.LLMTemperature, err = strconv.ParseFloat(get(KeyLLMTemperature, "0.3"), 64); err != nil {
		return nil, numErr(KeyLLMTemperature, err)
	}
	if c.LLMMaxTokens, err = strconv.Atoi(get(KeyLLMMaxTokens, "4096")); err != nil {
		return nil, numErr(KeyLLMMaxTokens, err)
	}
	if c.SMTPPort, err = strconv.Atoi(get(KeySMTPPort, "587")); err != nil {
		return nil, numErr(KeySMTPPort, err)
	}

	if c.WorkspaceRoot == "xdg" {
		c.WorkspaceRoot = filepath.Join(xdg.DataHome, "ytsaver")
	}

	if c.PromptFile != "" {
		resolved, err := resolvePromptFile(path, c.PromptFile)
		if err != nil {
			return nil, &ConfigError{Path: path, Reason: err.Error(), Expected: expected}
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("read prompt file: %v", err), Expected: expected}
		}
		c.PromptFile = resolved
		c.Prompt = string(data)
	}

	c.HTTPClient = &http.Client{
		Timeout: c.FetchTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     60 * time.Second,
		},
	}
	return c, nil
}

// resolvePromptFile tries p as-is when absolute, then relative to the config
// file's directory, then relative to the working directory.
func resolvePromptFile(configPath, p string) (string, error) {
	candidates := []string{p}
	if !filepath.IsAbs(p) {
		candidates = []string{filepath.Join(filepath.Dir(configPath), p), p}
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("prompt file %q not found", p)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
