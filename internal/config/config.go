package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/billaspace/anonxmusic/internal/domain"
)

const (
	configName = "config"
	configType = "toml"
	envPrefix  = "ANONX"
	configDir  = ".anonx"
)

// Config is everything the bot needs to come up: Telegram credentials, the
// assistant session strings, the log channel, and the operational knobs.
type Config struct {
	APIID    int32
	APIHash  string
	BotToken string

	Sessions []string
	LogChat  int64
	Sudoers  []int64

	SupportChannel string
	SupportChat    string

	RedisURI string
	BansPath string

	StartAttempts  int
	InterSlotPause time.Duration

	BotBroadcastCap       int64
	AssistantBroadcastCap int64
	BotAbandonAfter       time.Duration
	AssistantAbandonAfter time.Duration
	BotPace               time.Duration
	AssistantPace         time.Duration

	AdminRefreshInterval time.Duration

	LogLevel string
}

// legacyEnvAliases maps viper keys to the environment variable names the
// deployment guides have used for years. ANONX_-prefixed names win when both
// are set.
var legacyEnvAliases = map[string][]string{
	"telegram.api_id":    {"API_ID"},
	"telegram.api_hash":  {"API_HASH"},
	"telegram.bot_token": {"BOT_TOKEN"},
	"telegram.log_chat":  {"LOGGER_ID"},
	"support.channel":    {"SUPPORT_CHANNEL"},
	"support.chat":       {"SUPPORT_CHAT"},
	"redis.uri":          {"REDIS_URI"},
	"sudo.users":         {"SUDO_USERS", "OWNER_ID"},
}

var (
	ErrNoSessions   = errors.New("no assistant session strings configured")
	ErrMissingAPIID = errors.New("telegram api id is not set")
	ErrMissingHash  = errors.New("telegram api hash is not set")
	ErrMissingToken = errors.New("bot token is not set")
	ErrMissingLog   = errors.New("log chat id is not set")
)

func Load(cfg *viper.Viper) (Config, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(".")
	cfg.AddConfigPath(filepath.Join(homeDir, configDir))

	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()
	for key, aliases := range legacyEnvAliases {
		args := append([]string{key}, aliases...)
		if err := cfg.BindEnv(args...); err != nil {
			return Config{}, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	setDefaults(cfg, homeDir)

	if err := cfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	out := Config{
		APIID:    cfg.GetInt32("telegram.api_id"),
		APIHash:  cfg.GetString("telegram.api_hash"),
		BotToken: cfg.GetString("telegram.bot_token"),

		Sessions: sessionStrings(cfg),
		LogChat:  cfg.GetInt64("telegram.log_chat"),
		Sudoers:  sudoUsers(cfg),

		SupportChannel: cfg.GetString("support.channel"),
		SupportChat:    cfg.GetString("support.chat"),

		RedisURI: cfg.GetString("redis.uri"),
		BansPath: cfg.GetString("bans.path"),

		StartAttempts:  cfg.GetInt("assistants.start_attempts"),
		InterSlotPause: cfg.GetDuration("assistants.inter_slot_pause"),

		BotBroadcastCap:       cfg.GetInt64("broadcast.bot_concurrency"),
		AssistantBroadcastCap: cfg.GetInt64("broadcast.assistant_concurrency"),
		BotAbandonAfter:       cfg.GetDuration("broadcast.bot_abandon_after"),
		AssistantAbandonAfter: cfg.GetDuration("broadcast.assistant_abandon_after"),
		BotPace:               cfg.GetDuration("broadcast.bot_pace"),
		AssistantPace:         cfg.GetDuration("broadcast.assistant_pace"),

		AdminRefreshInterval: cfg.GetDuration("admin_cache.refresh_interval"),

		LogLevel: cfg.GetString("log.level"),
	}

	if err := out.validate(); err != nil {
		return Config{}, err
	}

	return out, nil
}

func setDefaults(cfg *viper.Viper, homeDir string) {
	cfg.SetDefault("bans.path", filepath.Join(homeDir, configDir, "bans.toml"))
	cfg.SetDefault("assistants.start_attempts", 3)
	cfg.SetDefault("assistants.inter_slot_pause", 2*time.Second)
	cfg.SetDefault("broadcast.bot_concurrency", 20)
	cfg.SetDefault("broadcast.assistant_concurrency", 5)
	cfg.SetDefault("broadcast.bot_abandon_after", 200*time.Second)
	cfg.SetDefault("broadcast.assistant_abandon_after", 10*time.Second)
	cfg.SetDefault("broadcast.bot_pace", 200*time.Millisecond)
	cfg.SetDefault("broadcast.assistant_pace", 3*time.Second)
	cfg.SetDefault("admin_cache.refresh_interval", 10*time.Second)
	cfg.SetDefault("log.level", "info")
}

// sessionStrings reads up to five session strings. The first slot accepts
// both STRING_SESSION and STRING_SESSION1; later slots are numbered only.
// Gaps are preserved so slot numbers stay stable.
func sessionStrings(cfg *viper.Viper) []string {
	sessions := make([]string, domain.MaxSlots)
	for slot := 1; slot <= domain.MaxSlots; slot++ {
		key := fmt.Sprintf("sessions.slot%d", slot)
		aliases := []string{key, fmt.Sprintf("STRING_SESSION%d", slot)}
		if slot == 1 {
			aliases = append(aliases, "STRING_SESSION")
		}
		_ = cfg.BindEnv(aliases...)
		sessions[slot-1] = strings.TrimSpace(cfg.GetString(key))
	}
	for len(sessions) > 0 && sessions[len(sessions)-1] == "" {
		sessions = sessions[:len(sessions)-1]
	}
	return sessions
}

func sudoUsers(cfg *viper.Viper) []int64 {
	raw := cfg.GetString("sudo.users")
	if raw == "" {
		ints := cfg.GetIntSlice("sudo.users")
		out := make([]int64, 0, len(ints))
		for _, id := range ints {
			out = append(out, int64(id))
		}
		return out
	}

	var out []int64
	for _, field := range strings.Fields(strings.ReplaceAll(raw, ",", " ")) {
		var id int64
		if _, err := fmt.Sscanf(field, "%d", &id); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func (c Config) validate() error {
	if c.APIID == 0 {
		return ErrMissingAPIID
	}
	if c.APIHash == "" {
		return ErrMissingHash
	}
	if c.BotToken == "" {
		return ErrMissingToken
	}
	if c.LogChat == 0 {
		return ErrMissingLog
	}

	configured := 0
	for _, s := range c.Sessions {
		if s != "" {
			configured++
		}
	}
	if configured == 0 {
		return ErrNoSessions
	}

	return nil
}
