package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	FeedLocal = "local"
	FeedNATS  = "nats"
	FeedRedis = "redis"
)

// Keys double as flag names; the environment variable is the key upper-cased
// with dashes turned into underscores (db-max-open-conns -> DB_MAX_OPEN_CONNS).
const (
	KeyPort              = "port"
	KeyDatabaseURL       = "database-url"
	KeyDBMaxOpenConns    = "db-max-open-conns"
	KeyDBMaxIdleConns    = "db-max-idle-conns"
	KeyDBConnMaxLifetime = "db-conn-max-lifetime-seconds"
	KeyDBConnMaxIdleTime = "db-conn-max-idle-seconds"
	KeyFeedDriver        = "feed-driver"
	KeyNATSURL           = "nats-url"
	KeyRedisAddr         = "redis-addr"
	KeyRedisPassword     = "redis-password"
	KeyRedisDB           = "redis-db"
	KeySessionSecret     = "session-secret"
	KeySessionTTL        = "session-ttl"
	KeyWordsPath         = "words-path"
	KeyBotClueDelayMin   = "bot-clue-delay-min"
	KeyBotClueDelayMax   = "bot-clue-delay-max"
	KeyBotVoteDelayMin   = "bot-vote-delay-min"
	KeyBotVoteDelayMax   = "bot-vote-delay-max"
	KeyRoomTTL           = "room-ttl"
	KeyJanitorSchedule   = "janitor-schedule"
	KeyPublicURL         = "public-url"
	KeyLogLevel          = "log-level"
)

const (
	defaultSessionSecret   = "dev-session-secret"
	defaultJanitorSchedule = "@every 10m"
)

type Config struct {
	Port                     int
	DatabaseURL              string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeSeconds int
	DBConnMaxIdleTimeSeconds int
	FeedDriver               string
	NATSURL                  string
	RedisAddr                string
	RedisPassword            string
	RedisDB                  int
	SessionSecret            string
	SessionTTL               time.Duration
	WordsPath                string
	BotClueDelayMin          time.Duration
	BotClueDelayMax          time.Duration
	BotVoteDelayMin          time.Duration
	BotVoteDelayMax          time.Duration
	RoomTTL                  time.Duration
	JanitorSchedule          string
	PublicURL                string
	LogLevel                 string
}

func Default() Config {
	return Config{
		Port:                     8080,
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
		FeedDriver:               FeedLocal,
		NATSURL:                  "nats://127.0.0.1:4222",
		RedisAddr:                "127.0.0.1:6379",
		SessionSecret:            defaultSessionSecret,
		SessionTTL:               24 * time.Hour,
		WordsPath:                "data/words.yaml",
		BotClueDelayMin:          time.Second,
		BotClueDelayMax:          3 * time.Second,
		BotVoteDelayMin:          time.Second,
		BotVoteDelayMax:          4 * time.Second,
		RoomTTL:                  6 * time.Hour,
		JanitorSchedule:          defaultJanitorSchedule,
		LogLevel:                 "info",
	}
}

// NewViper returns a viper instance seeded with the defaults and reading the
// environment.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	def := Default()
	v.SetDefault(KeyPort, def.Port)
	v.SetDefault(KeyDatabaseURL, def.DatabaseURL)
	v.SetDefault(KeyDBMaxOpenConns, def.DBMaxOpenConns)
	v.SetDefault(KeyDBMaxIdleConns, def.DBMaxIdleConns)
	v.SetDefault(KeyDBConnMaxLifetime, def.DBConnMaxLifetimeSeconds)
	v.SetDefault(KeyDBConnMaxIdleTime, def.DBConnMaxIdleTimeSeconds)
	v.SetDefault(KeyFeedDriver, def.FeedDriver)
	v.SetDefault(KeyNATSURL, def.NATSURL)
	v.SetDefault(KeyRedisAddr, def.RedisAddr)
	v.SetDefault(KeyRedisPassword, def.RedisPassword)
	v.SetDefault(KeyRedisDB, def.RedisDB)
	v.SetDefault(KeySessionSecret, def.SessionSecret)
	v.SetDefault(KeySessionTTL, def.SessionTTL)
	v.SetDefault(KeyWordsPath, def.WordsPath)
	v.SetDefault(KeyBotClueDelayMin, def.BotClueDelayMin)
	v.SetDefault(KeyBotClueDelayMax, def.BotClueDelayMax)
	v.SetDefault(KeyBotVoteDelayMin, def.BotVoteDelayMin)
	v.SetDefault(KeyBotVoteDelayMax, def.BotVoteDelayMax)
	v.SetDefault(KeyRoomTTL, def.RoomTTL)
	v.SetDefault(KeyJanitorSchedule, def.JanitorSchedule)
	v.SetDefault(KeyPublicURL, def.PublicURL)
	v.SetDefault(KeyLogLevel, def.LogLevel)
	return v
}

// BindFlags registers a flag for every key on fs and binds it to v, so a
// flag set on the command line wins over the environment.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	def := Default()
	fs.IntP(KeyPort, "p", def.Port, "port to listen on (env: PORT)")
	fs.String(KeyDatabaseURL, def.DatabaseURL, "postgres connection string; empty runs the in-memory store (env: DATABASE_URL)")
	fs.Int(KeyDBMaxOpenConns, def.DBMaxOpenConns, "max open database connections (env: DB_MAX_OPEN_CONNS)")
	fs.Int(KeyDBMaxIdleConns, def.DBMaxIdleConns, "max idle database connections (env: DB_MAX_IDLE_CONNS)")
	fs.Int(KeyDBConnMaxLifetime, def.DBConnMaxLifetimeSeconds, "connection lifetime in seconds (env: DB_CONN_MAX_LIFETIME_SECONDS)")
	fs.Int(KeyDBConnMaxIdleTime, def.DBConnMaxIdleTimeSeconds, "connection idle time in seconds (env: DB_CONN_MAX_IDLE_SECONDS)")
	fs.String(KeyFeedDriver, def.FeedDriver, "change feed: local, nats or redis (env: FEED_DRIVER)")
	fs.String(KeyNATSURL, def.NATSURL, "nats server url (env: NATS_URL)")
	fs.String(KeyRedisAddr, def.RedisAddr, "redis address (env: REDIS_ADDR)")
	fs.String(KeyRedisPassword, def.RedisPassword, "redis password (env: REDIS_PASSWORD)")
	fs.Int(KeyRedisDB, def.RedisDB, "redis database (env: REDIS_DB)")
	fs.String(KeySessionSecret, def.SessionSecret, "HMAC secret for guest tokens (env: SESSION_SECRET)")
	fs.Duration(KeySessionTTL, def.SessionTTL, "guest token lifetime (env: SESSION_TTL)")
	fs.String(KeyWordsPath, def.WordsPath, "word corpus seeded into the in-memory store (env: WORDS_PATH)")
	fs.Duration(KeyBotClueDelayMin, def.BotClueDelayMin, "shortest bot clue delay (env: BOT_CLUE_DELAY_MIN)")
	fs.Duration(KeyBotClueDelayMax, def.BotClueDelayMax, "longest bot clue delay (env: BOT_CLUE_DELAY_MAX)")
	fs.Duration(KeyBotVoteDelayMin, def.BotVoteDelayMin, "shortest bot vote delay (env: BOT_VOTE_DELAY_MIN)")
	fs.Duration(KeyBotVoteDelayMax, def.BotVoteDelayMax, "longest bot vote delay (env: BOT_VOTE_DELAY_MAX)")
	fs.Duration(KeyRoomTTL, def.RoomTTL, "idle time before a room is expired (env: ROOM_TTL)")
	fs.String(KeyJanitorSchedule, def.JanitorSchedule, "cron spec for the room janitor (env: JANITOR_SCHEDULE)")
	fs.String(KeyPublicURL, def.PublicURL, "base url used in join links (env: PUBLIC_URL)")
	fs.String(KeyLogLevel, def.LogLevel, "debug, info, warn or error (env: LOG_LEVEL)")

	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if bindErr := v.BindPFlag(f.Name, f); bindErr != nil && err == nil {
			err = bindErr
		}
	})
	return err
}

// FromViper reads the typed config out of v and validates it.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:                     v.GetInt(KeyPort),
		DatabaseURL:              strings.TrimSpace(v.GetString(KeyDatabaseURL)),
		DBMaxOpenConns:           v.GetInt(KeyDBMaxOpenConns),
		DBMaxIdleConns:           v.GetInt(KeyDBMaxIdleConns),
		DBConnMaxLifetimeSeconds: v.GetInt(KeyDBConnMaxLifetime),
		DBConnMaxIdleTimeSeconds: v.GetInt(KeyDBConnMaxIdleTime),
		FeedDriver:               strings.ToLower(strings.TrimSpace(v.GetString(KeyFeedDriver))),
		NATSURL:                  v.GetString(KeyNATSURL),
		RedisAddr:                v.GetString(KeyRedisAddr),
		RedisPassword:            v.GetString(KeyRedisPassword),
		RedisDB:                  v.GetInt(KeyRedisDB),
		SessionSecret:            v.GetString(KeySessionSecret),
		SessionTTL:               v.GetDuration(KeySessionTTL),
		WordsPath:                v.GetString(KeyWordsPath),
		BotClueDelayMin:          v.GetDuration(KeyBotClueDelayMin),
		BotClueDelayMax:          v.GetDuration(KeyBotClueDelayMax),
		BotVoteDelayMin:          v.GetDuration(KeyBotVoteDelayMin),
		BotVoteDelayMax:          v.GetDuration(KeyBotVoteDelayMax),
		RoomTTL:                  v.GetDuration(KeyRoomTTL),
		JanitorSchedule:          v.GetString(KeyJanitorSchedule),
		PublicURL:                strings.TrimRight(v.GetString(KeyPublicURL), "/"),
		LogLevel:                 strings.ToLower(v.GetString(KeyLogLevel)),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the config from defaults and the environment only.
func Load() (Config, error) {
	return FromViper(NewViper())
}

func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch c.FeedDriver {
	case FeedLocal, FeedNATS, FeedRedis:
	default:
		return fmt.Errorf("unknown feed driver %q", c.FeedDriver)
	}
	if c.SessionSecret == "" {
		return errors.New("session secret must not be empty")
	}
	if c.SessionTTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if c.BotClueDelayMin < 0 || c.BotClueDelayMax < c.BotClueDelayMin {
		return errors.New("bot clue delay range is invalid")
	}
	if c.BotVoteDelayMin < 0 || c.BotVoteDelayMax < c.BotVoteDelayMin {
		return errors.New("bot vote delay range is invalid")
	}
	return nil
}

// UsesDefaultSecret reports whether tokens are signed with the development
// secret.
func (c Config) UsesDefaultSecret() bool {
	return c.SessionSecret == defaultSessionSecret
}
