package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode   string `mapstructure:"mode"`
	Port   int    `mapstructure:"port"`
	Secret string `mapstructure:"secret"`

	// Signing material for the credential endpoint.
	APIKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`

	Credential CredentialConfig `mapstructure:"credential"`
	Rooms      RoomsConfig      `mapstructure:"rooms"`
	Session    SessionConfig    `mapstructure:"session"`
	Signal     SignalConfig     `mapstructure:"signal"`
	Devices    DevicesConfig    `mapstructure:"devices"`

	ICEServers       []string `mapstructure:"ice_servers"`
	ShareBaseURL     string   `mapstructure:"share_base_url"`
	SessionsEndpoint string   `mapstructure:"sessions_endpoint"`
	CORSOrigins      []string `mapstructure:"cors_origins"`
}

type CredentialConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	TTL      time.Duration `mapstructure:"ttl"`
	MaxTTL   time.Duration `mapstructure:"max_ttl"`
}

type RoomsConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	Timeout      time.Duration `mapstructure:"timeout"`
	JoinTemplate string        `mapstructure:"join_template"`
	Strict       bool          `mapstructure:"strict"`
}

type SessionConfig struct {
	MaxRetries         int           `mapstructure:"max_retries"`
	Backoff            time.Duration `mapstructure:"backoff"`
	MeterInterval      time.Duration `mapstructure:"meter_interval"`
	AllowLocalFallback bool          `mapstructure:"allow_local_fallback"`
}

type SignalConfig struct {
	URL        string        `mapstructure:"url"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	JoinLimit  int           `mapstructure:"join_limit"`
	JoinWindow time.Duration `mapstructure:"join_window"`
}

type DevicesConfig struct {
	Camera     bool    `mapstructure:"camera"`
	Microphone bool    `mapstructure:"microphone"`
	Permission bool    `mapstructure:"permission"`
	ToneHz     float64 `mapstructure:"tone_hz"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret", "dev-signing-secret")

	v.SetDefault("credential.endpoint", "http://localhost:8080/v2/token")
	v.SetDefault("credential.timeout", "10s")
	v.SetDefault("credential.ttl", "24h")
	v.SetDefault("credential.max_ttl", "48h")

	v.SetDefault("rooms.endpoint", "http://localhost:8080/v2/rooms")
	v.SetDefault("rooms.timeout", "10s")
	v.SetDefault("rooms.join_template", "meeting-%s")

	v.SetDefault("session.max_retries", 2)
	v.SetDefault("session.backoff", "500ms")
	v.SetDefault("session.meter_interval", "16ms")

	v.SetDefault("signal.url", "ws://localhost:8080/api/ws/signal")
	v.SetDefault("signal.read_limit", 32768)
	v.SetDefault("signal.ping_period", "54s")
	v.SetDefault("signal.join_limit", 5)
	v.SetDefault("signal.join_window", "1m")

	v.SetDefault("devices.camera", true)
	v.SetDefault("devices.microphone", true)
	v.SetDefault("devices.permission", true)
	v.SetDefault("devices.tone_hz", 440.0)

	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("share_base_url", "http://localhost:3000/video-test")
	v.SetDefault("sessions_endpoint", "http://localhost:8080/api/sessions")
	v.SetDefault("cors_origins", []string{"*"})
}

// Load reads config/config.<CONFIG_ENV>.yaml over the defaults.
// Precedence: changed flags, then CONSULT_* environment, then the file.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvPrefix("consult")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Msg("config ready")
	return &cfg, nil
}
