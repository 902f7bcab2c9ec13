package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode             string        `mapstructure:"mode"`
	LogLevel         string        `mapstructure:"log_level"`
	ServerURL        string        `mapstructure:"server_url"`
	LobbyURL         string        `mapstructure:"lobby_url"`
	PublicRoomType   string        `mapstructure:"public_room_type"`
	UserID           string        `mapstructure:"user_id"`
	PlayerName       string        `mapstructure:"player_name"`
	BridgePort       int           `mapstructure:"bridge_port"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	PingPeriod       time.Duration `mapstructure:"ping_period"`
	ReadLimit        int64         `mapstructure:"read_limit"`
	SendBuffer       int           `mapstructure:"send_buffer"`
	SendLimit        int           `mapstructure:"send_limit"`
	SendWindow       time.Duration `mapstructure:"send_window"`
	ICEServers       []string      `mapstructure:"ice_servers"`
	// AudioIn is a UDP address receiving Opus RTP for the microphone.
	// Empty means calls are receive-only.
	AudioIn          string        `mapstructure:"audio_in"`
	// AudioOut is a UDP address remote audio is forwarded to.
	AudioOut         string        `mapstructure:"audio_out"`
}

// Load reads config/config.<CONFIG_ENV>.yaml, falling back to defaults
// when the file is missing. LOUNGE_* variables override both.
func Load() (*Config, error) {
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

	v.SetEnvPrefix("LOUNGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("server_url", "ws://localhost:2567/room")
	v.SetDefault("lobby_url", "ws://localhost:2567/lobby")
	v.SetDefault("public_room_type", "skyoffice")
	v.SetDefault("user_id", "")
	v.SetDefault("player_name", "")
	v.SetDefault("bridge_port", 8090)
	v.SetDefault("handshake_timeout", "10s")
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("ping_period", "54s")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("send_buffer", 32)
	v.SetDefault("send_limit", 20)
	v.SetDefault("send_window", "1s")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("audio_in", "")
	v.SetDefault("audio_out", "")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("Config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("Loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Str("server", cfg.ServerURL).
		Int("bridge_port", cfg.BridgePort).
		Msg("config ready")
	return &cfg, nil
}
