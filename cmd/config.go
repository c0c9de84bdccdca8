package main

import "time"

type Config struct {
	Host     string `env:"HOST,default=localhost"`
	Port     int    `env:"PORT,default=5001"`
	LogLevel string `env:"LOG_LEVEL,required=true"`

	TokenSecret   string        `env:"TOKEN_SECRET,required=true"`
	TokenDuration time.Duration `env:"TOKEN_DURATION,default=24h"`

	RedisAddr     string `env:"REDIS_ADDR,required=true"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`

	QueueKeyPrefix    string        `env:"QUEUE_KEY_PREFIX,default=matchmaking"`
	SnapshotKeyPrefix string        `env:"SNAPSHOT_KEY_PREFIX,default=broken"`
	SnapshotTTL       time.Duration `env:"SNAPSHOT_TTL,default=30s"`

	Modes            string        `env:"MODES,required=true"`
	MaxAgeGap        int           `env:"MAX_AGE_GAP,default=10"`
	MatchTickDelay   time.Duration `env:"MATCH_TICK_DELAY,default=100ms"`
	MatchNotifyDelay time.Duration `env:"MATCH_NOTIFY_DELAY,default=200ms"`
	RestartInterval  time.Duration `env:"RESTART_INTERVAL,default=5s"`
	StatsInterval    time.Duration `env:"STATS_INTERVAL,default=1m"`

	// Kept as a string: the env parser reads rune fields as numeric
	// codepoints, and "*" is friendlier than "42".
	ModerationWordsPath       string `env:"MODERATION_WORDS_PATH"`
	ModerationCharReplacement string `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`

	HCaptchaEnabled bool   `env:"HCAPTCHA_ENABLED,default=false"`
	HCaptchaSecret  string `env:"HCAPTCHA_SECRET"`

	AllowedOrigins string `env:"ALLOWED_ORIGINS"`
}
