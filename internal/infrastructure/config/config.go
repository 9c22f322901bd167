package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"change-server/internal/domain/acceptor"
	"change-server/internal/domain/change"
	"change-server/internal/domain/coin"
	"change-server/internal/domain/hopper"
)

// Config アプリケーション全体の設定
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	JWT           JWTConfig
	AdminAPI      AdminAPIConfig
	OpenTelemetry OpenTelemetryConfig
	Coin          CoinConfig
	Hardware      HardwareConfig
	Dispense      DispenseConfig
	Hoppers       []HopperConfig
	Acceptor      AcceptorConfig
	Environment   string
}

// ServerConfig サーバー設定
type ServerConfig struct {
	Port         int
	GRPCPort     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig データベース設定
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// JWTConfig JWT設定
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// AdminAPIConfig 管理API設定
type AdminAPIConfig struct {
	Enabled    bool
	APIKey     string
	AllowedIPs []string
}

// OpenTelemetryConfig OpenTelemetry設定
type OpenTelemetryConfig struct {
	Enabled         bool
	ServiceName     string
	ServiceVersion  string
	OTLPEndpoint    string
	OTLPInsecure    bool
	TraceExporter   string // "otlp", "none"
	MetricsExporter string // "otlp", "none"
}

// CoinConfig 硬貨とおつりのビジネスルール設定
type CoinConfig struct {
	Denominations        []int64
	Reserves             map[int64]int64
	MaxChangeLimit       int64
	SmallChangeBand      int64
	MediumChangeBand     int64
	RoundingUnits        []int64
	SuggestionLimit      int
	AcceptedPayments     []int64
	LimitedCapacityBelow int64
}

// HardwareConfig ハードウェア接続設定
type HardwareConfig struct {
	Driver      string // "pigpio", "simulated"
	Address     string
	DialTimeout time.Duration
	ActiveLow   bool
	// LockFile ホッパーを占有するプロセスが保持するロックファイル（pigpio のみ）
	LockFile string
	// シミュレーター用
	SimNoise    bool
	SimJamAfter map[int64]int64
}

// DispenseConfig 払い出しとセンサーフィルタの設定
type DispenseConfig struct {
	NoiseFloor         time.Duration
	MaxValidWidth      time.Duration
	Cooldown           time.Duration
	GlitchFilter       time.Duration
	HopperTimeout      time.Duration
	SettleDelay        time.Duration
	TransactionTimeout time.Duration
}

// HopperConfig ホッパー1台のピン割り当て
type HopperConfig struct {
	ID           string
	Denomination int64
	SignalPin    int
	EnablePin    int
}

// AcceptorConfig 硬貨投入口（パルス出力式コインセレクター）の設定
type AcceptorConfig struct {
	Enabled    bool
	PulsePin   int
	InhibitPin int
	// PulseValues パルス数から額面への対応
	PulseValues   map[int64]int64
	PulseTimeout  time.Duration
	NoiseFloor    time.Duration
	MaxValidWidth time.Duration
	Cooldown      time.Duration
	GlitchFilter  time.Duration
	RetryDelay    time.Duration
}

const (
	DriverPigpio    = "pigpio"
	DriverSimulated = "simulated"

	// AcceptorID 投入口のセンサーとインヒビットピンを束ねるID
	AcceptorID = "acceptor"
)

// Load 設定を読み込む
func Load() (*Config, error) {
	// .envファイルを読み込む（存在しない場合は無視）
	_ = godotenv.Load()

	env := getEnv("ENVIRONMENT", "development")

	hoppers, err := parseHoppers(getEnv("HOPPERS", "A:1:21:16,B:5:6:26"))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	port := getEnvAsInt("SERVER_PORT", 8080)
	cfg := &Config{
		Environment: env,
		Server: ServerConfig{
			Port:         port,
			GRPCPort:     getEnvAsInt("GRPC_PORT", port+1),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: databaseFromEnv(),
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", ""),
			Expiration: getEnvAsDuration("JWT_EXPIRATION", 24*time.Hour),
			Issuer:     getEnv("JWT_ISSUER", "change-server"),
		},
		AdminAPI: AdminAPIConfig{
			Enabled:    getEnvAsBool("ADMIN_API_ENABLED", false),
			APIKey:     getEnv("ADMIN_API_KEY", ""),
			AllowedIPs: getEnvAsStringList("ADMIN_API_ALLOWED_IPS", nil),
		},
		OpenTelemetry: OpenTelemetryConfig{
			Enabled:         getEnvAsBool("OTEL_ENABLED", true),
			ServiceName:     getEnv("OTEL_SERVICE_NAME", "change-server"),
			ServiceVersion:  getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
			OTLPInsecure:    getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			TraceExporter:   getEnv("OTEL_TRACES_EXPORTER", "otlp"),
			MetricsExporter: getEnv("OTEL_METRICS_EXPORTER", "otlp"),
		},
		Coin:     coinFromEnv(),
		Hardware: hardwareFromEnv(),
		Dispense: dispenseFromEnv(),
		Hoppers:  hoppers,
		Acceptor: acceptorFromEnv(),
	}

	// 必須設定の検証
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadHardware ハードウェア関連の設定だけを読み込む（診断ツール用）
// Database と Coin も埋めるが検証はしない
func LoadHardware() (*Config, error) {
	_ = godotenv.Load()

	hoppers, err := parseHoppers(getEnv("HOPPERS", "A:1:21:16,B:5:6:26"))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Database:    databaseFromEnv(),
		Coin:        coinFromEnv(),
		Hardware:    hardwareFromEnv(),
		Dispense:    dispenseFromEnv(),
		Hoppers:     hoppers,
	}
	if err := cfg.validateHardware(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func databaseFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 3306),
		User:            getEnv("DB_USER", "root"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "kiosk_db"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 10*time.Minute),
	}
}

func coinFromEnv() CoinConfig {
	return CoinConfig{
		Denominations:        getEnvAsInt64List("COIN_DENOMINATIONS", []int64{1, 5}),
		Reserves:             getEnvAsInt64Map("COIN_RESERVES", map[int64]int64{}),
		MaxChangeLimit:       getEnvAsInt64("COIN_MAX_CHANGE_LIMIT", 50),
		SmallChangeBand:      getEnvAsInt64("COIN_SMALL_CHANGE_BAND", 5),
		MediumChangeBand:     getEnvAsInt64("COIN_MEDIUM_CHANGE_BAND", 20),
		RoundingUnits:        getEnvAsInt64List("COIN_ROUNDING_UNITS", []int64{10, 20, 50, 100}),
		SuggestionLimit:      getEnvAsInt("COIN_SUGGESTION_LIMIT", 5),
		AcceptedPayments:     getEnvAsInt64List("COIN_ACCEPTED_PAYMENTS", []int64{1, 5, 10, 20, 50, 100}),
		LimitedCapacityBelow: getEnvAsInt64("COIN_LIMITED_CAPACITY_BELOW", 10),
	}
}

func hardwareFromEnv() HardwareConfig {
	return HardwareConfig{
		Driver:      getEnv("HARDWARE_DRIVER", DriverSimulated),
		Address:     getEnv("PIGPIO_ADDR", "localhost:8888"),
		DialTimeout: getEnvAsDuration("PIGPIO_DIAL_TIMEOUT", 3*time.Second),
		ActiveLow:   getEnvAsBool("HOPPER_ACTIVE_LOW", true),
		LockFile:    getEnv("HARDWARE_LOCK_FILE", filepath.Join(os.TempDir(), "change-server-hardware.lock")),
		SimNoise:    getEnvAsBool("SIM_NOISE", false),
		SimJamAfter: getEnvAsInt64Map("SIM_JAM_AFTER", map[int64]int64{}),
	}
}

func dispenseFromEnv() DispenseConfig {
	return DispenseConfig{
		NoiseFloor:         getEnvAsDuration("SENSOR_NOISE_FLOOR", 10*time.Millisecond),
		MaxValidWidth:      getEnvAsDuration("SENSOR_MAX_VALID_WIDTH", 500*time.Millisecond),
		Cooldown:           getEnvAsDuration("SENSOR_COOLDOWN", 30*time.Millisecond),
		GlitchFilter:       getEnvAsDuration("SENSOR_GLITCH_FILTER", 2*time.Millisecond),
		HopperTimeout:      getEnvAsDuration("HOPPER_TIMEOUT", 10*time.Second),
		SettleDelay:        getEnvAsDuration("HOPPER_SETTLE_DELAY", 500*time.Millisecond),
		TransactionTimeout: getEnvAsDuration("DISPENSE_TRANSACTION_TIMEOUT", 60*time.Second),
	}
}

func acceptorFromEnv() AcceptorConfig {
	return AcceptorConfig{
		Enabled:       getEnvAsBool("ACCEPTOR_ENABLED", true),
		PulsePin:      getEnvAsInt("ACCEPTOR_PULSE_PIN", 17),
		InhibitPin:    getEnvAsInt("ACCEPTOR_INHIBIT_PIN", 23),
		PulseValues:   getEnvAsInt64Map("ACCEPTOR_PULSE_VALUES", map[int64]int64{1: 1, 2: 5}),
		PulseTimeout:  getEnvAsDuration("ACCEPTOR_PULSE_TIMEOUT", 500*time.Millisecond),
		NoiseFloor:    getEnvAsDuration("ACCEPTOR_NOISE_FLOOR", 5*time.Millisecond),
		MaxValidWidth: getEnvAsDuration("ACCEPTOR_MAX_VALID_WIDTH", 150*time.Millisecond),
		Cooldown:      getEnvAsDuration("ACCEPTOR_COOLDOWN", 20*time.Millisecond),
		GlitchFilter:  getEnvAsDuration("ACCEPTOR_GLITCH_FILTER", 2*time.Millisecond),
		RetryDelay:    getEnvAsDuration("ACCEPTOR_RETRY_DELAY", 5*time.Second),
	}
}

// validate 設定の検証
func (c *Config) validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.AdminAPI.Enabled && c.AdminAPI.APIKey == "" {
		return fmt.Errorf("ADMIN_API_KEY is required when admin API is enabled")
	}
	if _, err := c.Coin.Policy(); err != nil {
		return err
	}
	return c.validateHardware()
}

// validateHardware ハードウェア設定の検証
func (c *Config) validateHardware() error {
	if c.Hardware.Driver != DriverPigpio && c.Hardware.Driver != DriverSimulated {
		return fmt.Errorf("HARDWARE_DRIVER must be %q or %q, got %q", DriverPigpio, DriverSimulated, c.Hardware.Driver)
	}
	if len(c.Hoppers) == 0 {
		return fmt.Errorf("HOPPERS is required")
	}
	if _, err := c.HopperConfigs(); err != nil {
		return err
	}
	if c.Acceptor.Enabled {
		for _, h := range c.Hoppers {
			if h.ID == AcceptorID {
				return fmt.Errorf("HOPPERS: id %q is reserved for the coin acceptor", AcceptorID)
			}
		}
		if _, err := c.AcceptorSettings(); err != nil {
			return err
		}
	}
	return nil
}

// AllowsIP IPアドレスが許可リスト（単一IPまたはCIDR）に含まれているか
// 許可リストが空の場合はすべて許可する
func (c *AdminAPIConfig) AllowsIP(ip string) bool {
	if len(c.AllowedIPs) == 0 {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, entry := range c.AllowedIPs {
		if _, network, err := net.ParseCIDR(entry); err == nil {
			if network.Contains(parsed) {
				return true
			}
			continue
		}
		if other := net.ParseIP(entry); other != nil && other.Equal(parsed) {
			return true
		}
	}
	return false
}

// DSN データベース接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Policy おつりポリシーを組み立てる
func (c *CoinConfig) Policy() (change.Policy, error) {
	set, err := coin.NewDenominationSet(c.Denominations...)
	if err != nil {
		return change.Policy{}, fmt.Errorf("COIN_DENOMINATIONS: %w", err)
	}
	reserves := make(map[coin.Denomination]int64, len(c.Reserves))
	for d, n := range c.Reserves {
		reserves[coin.Denomination(d)] = n
	}
	policy := change.Policy{
		Denominations:        set,
		ReserveThresholds:    reserves,
		MaxChangeLimit:       c.MaxChangeLimit,
		SmallChangeBand:      c.SmallChangeBand,
		MediumChangeBand:     c.MediumChangeBand,
		RoundingUnits:        c.RoundingUnits,
		SuggestionLimit:      c.SuggestionLimit,
		AcceptedPayments:     c.AcceptedPayments,
		LimitedCapacityBelow: c.LimitedCapacityBelow,
	}
	if err := policy.Validate(); err != nil {
		return change.Policy{}, err
	}
	return policy, nil
}

// HopperConfigs ホッパー制御用の設定を組み立てる
func (c *Config) HopperConfigs() ([]hopper.Config, error) {
	filter := hopper.FilterConfig{
		NoiseFloor:    c.Dispense.NoiseFloor,
		MaxValidWidth: c.Dispense.MaxValidWidth,
		Cooldown:      c.Dispense.Cooldown,
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	out := make([]hopper.Config, 0, len(c.Hoppers))
	for _, h := range c.Hoppers {
		d, err := coin.NewDenomination(h.Denomination)
		if err != nil {
			return nil, fmt.Errorf("hopper %s: %w", h.ID, err)
		}
		out = append(out, hopper.Config{
			ID:           h.ID,
			Denomination: d,
			GlitchFilter: c.Dispense.GlitchFilter,
			Filter:       filter,
		})
	}
	return out, nil
}

// AcceptorSettings 硬貨投入口の設定を組み立てる
func (c *Config) AcceptorSettings() (acceptor.Config, error) {
	values := make(map[int]coin.Denomination, len(c.Acceptor.PulseValues))
	for pulses, value := range c.Acceptor.PulseValues {
		d, err := coin.NewDenomination(value)
		if err != nil {
			return acceptor.Config{}, fmt.Errorf("ACCEPTOR_PULSE_VALUES %d:%d: %w", pulses, value, err)
		}
		values[int(pulses)] = d
	}
	settings := acceptor.Config{
		ID:           AcceptorID,
		PulseValues:  values,
		PulseTimeout: c.Acceptor.PulseTimeout,
		GlitchFilter: c.Acceptor.GlitchFilter,
		Filter: hopper.FilterConfig{
			NoiseFloor:    c.Acceptor.NoiseFloor,
			MaxValidWidth: c.Acceptor.MaxValidWidth,
			Cooldown:      c.Acceptor.Cooldown,
		},
		RetryDelay: c.Acceptor.RetryDelay,
	}
	if err := settings.Validate(); err != nil {
		return acceptor.Config{}, err
	}
	return settings, nil
}

// parseHoppers "ID:額面:信号ピン:イネーブルピン" のカンマ区切りを解析
func parseHoppers(raw string) ([]HopperConfig, error) {
	var out []HopperConfig
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("HOPPERS entry %q must be id:denomination:signal_pin:enable_pin", item)
		}
		denom, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("HOPPERS entry %q: %w", item, err)
		}
		signal, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("HOPPERS entry %q: %w", item, err)
		}
		enable, err := strconv.Atoi(parts[3])
		if err != nil {
			return nil, fmt.Errorf("HOPPERS entry %q: %w", item, err)
		}
		out = append(out, HopperConfig{ID: parts[0], Denomination: denom, SignalPin: signal, EnablePin: enable})
	}
	return out, nil
}

// getEnv 環境変数を取得（デフォルト値付き）
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt 環境変数を整数として取得
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 環境変数を64bit整数として取得
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool 環境変数を真偽値として取得
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration 環境変数を時間として取得
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsStringList 環境変数をカンマ区切りの文字列リストとして取得
func getEnvAsStringList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, s := range strings.Split(valueStr, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// getEnvAsInt64List 環境変数をカンマ区切りの整数リストとして取得（1つでも不正ならデフォルト値）
func getEnvAsInt64List(key string, defaultValue []int64) []int64 {
	items := getEnvAsStringList(key, nil)
	if len(items) == 0 {
		return defaultValue
	}
	out := make([]int64, 0, len(items))
	for _, s := range items {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return defaultValue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// getEnvAsInt64Map 環境変数を "キー:値" のカンマ区切りとして取得（1つでも不正ならデフォルト値）
func getEnvAsInt64Map(key string, defaultValue map[int64]int64) map[int64]int64 {
	items := getEnvAsStringList(key, nil)
	if len(items) == 0 {
		return defaultValue
	}
	out := make(map[int64]int64, len(items))
	for _, s := range items {
		k, v, ok := strings.Cut(s, ":")
		if !ok {
			return defaultValue
		}
		kv, err := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
		if err != nil {
			return defaultValue
		}
		vv, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return defaultValue
		}
		out[kv] = vv
	}
	return out
}
