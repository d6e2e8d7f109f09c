package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Log         LogConfig         `mapstructure:"log"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Integration IntegrationConfig `mapstructure:"integration"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
	Plan        PlanConfig        `mapstructure:"plan"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Env          string        `mapstructure:"env"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	RateLimit    int           `mapstructure:"rate_limit"` // requests per minute per IP
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // mysql | postgres
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
}

type JWTConfig struct {
	AccessSecret string        `mapstructure:"access_secret"`
	AccessExpiry time.Duration `mapstructure:"access_expiry"`
	Issuer       string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Output string `mapstructure:"output"` // stdout | file
	File   string `mapstructure:"file"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// IntegrationConfig authenticates the checkout/auth/KYC systems that push events.
type IntegrationConfig struct {
	KeyHash string `mapstructure:"key_hash"` // bcrypt hash of the shared integration key
}

type ScheduleConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	BinaryCron    string        `mapstructure:"binary_cron"`
	RecurringCron string        `mapstructure:"recurring_cron"`
	SweepWorkers  int           `mapstructure:"sweep_workers"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
}

// PlanConfig is the compensation plan as read from configuration.
// Amounts and volumes are in cents; percentages are plain numbers (20 = 20%).
type PlanConfig struct {
	DirectPercent float64          `mapstructure:"direct_percent"`
	Binary        BinaryConfig     `mapstructure:"binary"`
	Multilevel    MultilevelConfig `mapstructure:"multilevel"`
	Rank          RankConfig       `mapstructure:"rank"`
	Withdrawal    WithdrawalConfig `mapstructure:"withdrawal"`
}

type BinaryConfig struct {
	Percent        float64 `mapstructure:"percent"`
	MinPV          int64   `mapstructure:"min_pv"`
	CapCents       int64   `mapstructure:"cap_cents"` // 0 = uncapped
	MaxCarryCycles int     `mapstructure:"max_carry_cycles"`
	Period         string  `mapstructure:"period"` // daily | weekly | monthly
}

type MultilevelConfig struct {
	Levels []LevelConfig `mapstructure:"levels"`
}

type LevelConfig struct {
	Percent float64 `mapstructure:"percent"`
	MinPV   int64   `mapstructure:"min_pv"`
}

type RankConfig struct {
	ActiveDirectMinPV   int64            `mapstructure:"active_direct_min_pv"`
	EvaluateUplineDepth int              `mapstructure:"evaluate_upline_depth"`
	RecurringPeriod     string           `mapstructure:"recurring_period"`
	Tiers               []RankTierConfig `mapstructure:"tiers"`
}

type RankTierConfig struct {
	Name              string `mapstructure:"name"`
	Level             int    `mapstructure:"level"`
	MinPV             int64  `mapstructure:"min_pv"`
	MinLeftVolume     int64  `mapstructure:"min_left_volume"`
	MinRightVolume    int64  `mapstructure:"min_right_volume"`
	MinGroupVolume    int64  `mapstructure:"min_group_volume"`
	MinActiveDirects  int    `mapstructure:"min_active_directs"`
	OnetimeBonusCents int64  `mapstructure:"onetime_bonus_cents"`
	RecurringCents    int64  `mapstructure:"recurring_bonus_cents"`
}

type WithdrawalConfig struct {
	MinCents      int64   `mapstructure:"min_cents"`
	FeePercent    float64 `mapstructure:"fee_percent"`
	FeeFloorCents int64   `mapstructure:"fee_floor_cents"`
}

func Load() *Config {
	// .env is optional; real deployments inject env vars directly.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/ascend")
	v.SetEnvPrefix("ASCEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Printf("[config] no config file loaded, using defaults and env: %v", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("[config] unable to decode config: %v", err)
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8099")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 300)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "ascend:ascend@tcp(localhost:3306)/ascend?charset=utf8mb4&parseTime=True&loc=UTC")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.retry_attempts", 5)

	v.SetDefault("jwt.access_secret", "change-me-in-production")
	v.SetDefault("jwt.access_expiry", 15*time.Minute)
	v.SetDefault("jwt.issuer", "ascend")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/ascend.log")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("integration.key_hash", "")

	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.binary_cron", "5 0 * * 1")
	v.SetDefault("schedule.recurring_cron", "15 0 1 * *")
	v.SetDefault("schedule.sweep_workers", 16)
	v.SetDefault("schedule.lock_ttl", 2*time.Hour)

	v.SetDefault("plan.direct_percent", 20)
	v.SetDefault("plan.binary.percent", 10)
	v.SetDefault("plan.binary.min_pv", 10000)
	v.SetDefault("plan.binary.cap_cents", 500000)
	v.SetDefault("plan.binary.max_carry_cycles", 4)
	v.SetDefault("plan.binary.period", "weekly")
	v.SetDefault("plan.multilevel.levels", DefaultLevels())
	v.SetDefault("plan.rank.active_direct_min_pv", 10000)
	v.SetDefault("plan.rank.evaluate_upline_depth", 20)
	v.SetDefault("plan.rank.recurring_period", "monthly")
	v.SetDefault("plan.rank.tiers", DefaultRankTiers())
	v.SetDefault("plan.withdrawal.min_cents", 5000)
	v.SetDefault("plan.withdrawal.fee_percent", 2)
	v.SetDefault("plan.withdrawal.fee_floor_cents", 100)
}

// DefaultLevels is a 10-level unilevel table.
func DefaultLevels() []LevelConfig {
	return []LevelConfig{
		{Percent: 10, MinPV: 0},
		{Percent: 5, MinPV: 5000},
		{Percent: 4, MinPV: 5000},
		{Percent: 3, MinPV: 10000},
		{Percent: 2, MinPV: 10000},
		{Percent: 1, MinPV: 10000},
		{Percent: 1, MinPV: 20000},
		{Percent: 1, MinPV: 20000},
		{Percent: 0.5, MinPV: 30000},
		{Percent: 0.5, MinPV: 30000},
	}
}

func DefaultRankTiers() []RankTierConfig {
	return []RankTierConfig{
		{Name: "Bronze", Level: 1, MinPV: 10000, MinGroupVolume: 100000, MinActiveDirects: 2, OnetimeBonusCents: 5000, RecurringCents: 1000},
		{Name: "Silver", Level: 2, MinPV: 15000, MinLeftVolume: 200000, MinRightVolume: 200000, MinGroupVolume: 500000, MinActiveDirects: 4, OnetimeBonusCents: 20000, RecurringCents: 5000},
		{Name: "Gold", Level: 3, MinPV: 20000, MinLeftVolume: 1000000, MinRightVolume: 1000000, MinGroupVolume: 2500000, MinActiveDirects: 6, OnetimeBonusCents: 100000, RecurringCents: 20000},
		{Name: "Diamond", Level: 4, MinPV: 30000, MinLeftVolume: 5000000, MinRightVolume: 5000000, MinGroupVolume: 12000000, MinActiveDirects: 10, OnetimeBonusCents: 500000, RecurringCents: 100000},
	}
}
