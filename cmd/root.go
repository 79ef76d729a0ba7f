package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/prepmate/internal/domain"
	"github.com/spigell/prepmate/internal/interview"
	"github.com/spigell/prepmate/internal/logger"
	"github.com/spigell/prepmate/internal/server"
)

const (
	app       = "prepmate"
	envPrefix = "PREPMATE"
)

type Config struct {
	Interview *InterviewConfig `mapstructure:"interview"`
	Storage   *StorageConfig   `mapstructure:"storage"`
	AI        *AIConfig        `mapstructure:"ai"`
	Server    server.Options   `mapstructure:"server"`
}

type InterviewConfig struct {
	Mode              domain.Mode              `mapstructure:"mode"`
	Quota             int                      `mapstructure:"quota"`
	CategoryPolicy    interview.CategoryPolicy `mapstructure:"category-policy"`
	DefaultCategory   string                   `mapstructure:"default-category"`
	QuestionsFile     string                   `mapstructure:"questions-file"`
	SessionTTL        time.Duration            `mapstructure:"session-ttl"`
	MaxSessions       int                      `mapstructure:"max-sessions"`
	GenerationTimeout time.Duration            `mapstructure:"generation-timeout"`

	// Terminal practice settings, usually set through interview flags.
	Category string `mapstructure:"category"`
	Role     string `mapstructure:"role"`
	AudioDir string `mapstructure:"audio-dir"`
	SpeakDir string `mapstructure:"speak-dir"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Dir    string `mapstructure:"dir"`
	DSN    string `mapstructure:"dsn"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
	OpenAI   *OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type OpenAIConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	BaseURL      string `mapstructure:"base-url"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
	TTSModel     string `mapstructure:"tts-model"`
	Voice        string `mapstructure:"voice"`
	STTModel     string `mapstructure:"stt-model"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "prepmate is a mock interview practice tool with instant feedback",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is prepmate.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("log-file", "", "write logs to this file instead of stdout")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interview.mode", string(domain.ModeStatic))
	v.SetDefault("interview.quota", interview.DefaultQuota)
	v.SetDefault("interview.category-policy", string(interview.PolicyReject))
	v.SetDefault("interview.default-category", "Technical")
	v.SetDefault("interview.questions-file", "")
	v.SetDefault("interview.session-ttl", interview.DefaultSessionTTL)
	v.SetDefault("interview.max-sessions", interview.DefaultMaxSessions)
	v.SetDefault("interview.generation-timeout", interview.DefaultGenerationTimeout)
	v.SetDefault("interview.category", "")
	v.SetDefault("interview.role", "")
	v.SetDefault("interview.audio-dir", "")
	v.SetDefault("interview.speak-dir", "")

	v.SetDefault("storage.driver", storageFile)
	v.SetDefault("storage.dir", "results")
	v.SetDefault("storage.dsn", app+".db")

	v.SetDefault("ai.provider", providerGemini)
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.max-retries", 3)
	v.SetDefault("ai.gemini.max-log-length", 0)
	v.SetDefault("ai.openai.api-key", "")
	v.SetDefault("ai.openai.api-key-file", "")
	v.SetDefault("ai.openai.base-url", "")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.openai.max-retries", 3)
	v.SetDefault("ai.openai.max-log-length", 0)
	v.SetDefault("ai.openai.tts-model", "tts-1")
	v.SetDefault("ai.openai.voice", "alloy")
	v.SetDefault("ai.openai.stt-model", "whisper-1")

	v.SetDefault("server.addr", server.DefaultAddr)
	v.SetDefault("server.request-timeout", server.DefaultRequestTimeout)
	v.SetDefault("server.shutdown-timeout", server.DefaultShutdownTimeout)
	v.SetDefault("server.rate-limit", server.DefaultRateLimit)
	v.SetDefault("server.rate-window", server.DefaultRateWindow)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

func initConfig() {
	// A missing .env is normal; a broken one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		// We can't proceed if the config file parsed with error.
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil || config.Interview == nil || config.Storage == nil || config.AI == nil {
		return nil, errors.New("config is incomplete")
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.AI.OpenAI == nil {
		config.AI.OpenAI = &OpenAIConfig{}
	}

	return config, nil
}

func newLogger() *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if path := viper.GetString("log-file"); path != "" {
		l, err = logger.NewToFile(viper.GetBool("json"), viper.GetBool("debug"), path)
	} else {
		l, err = logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	}
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}
