package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Database   DatabaseConfig   `mapstructure:"database"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Assistants AssistantsConfig `mapstructure:"assistants"`
	Session    SessionConfig    `mapstructure:"session"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// AssistantsConfig names the two downstream assistant configurations:
// the analyzer that pre-processes each coalesced message and the primary
// conversational assistant that produces the user-facing reply.
type AssistantsConfig struct {
	AnalyzerID string `mapstructure:"analyzer_id"`
	PrimaryID  string `mapstructure:"primary_id"`
}

type SessionConfig struct {
	DebounceSeconds   int `mapstructure:"debounce_seconds"`
	PollAttempts      int `mapstructure:"poll_attempts"`
	PollIntervalSecs  int `mapstructure:"poll_interval_seconds"`
	CuePadSeconds     int `mapstructure:"cue_pad_seconds"`
	DefaultCueSeconds int `mapstructure:"default_cue_seconds"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("session.debounce_seconds", 15)
	v.SetDefault("session.poll_attempts", 10)
	v.SetDefault("session.poll_interval_seconds", 2)
	v.SetDefault("session.cue_pad_seconds", 3)
	v.SetDefault("session.default_cue_seconds", 2)

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai api key is required")
	}
	if c.Assistants.AnalyzerID == "" || c.Assistants.PrimaryID == "" {
		return fmt.Errorf("both assistants.analyzer_id and assistants.primary_id are required")
	}
	return nil
}
