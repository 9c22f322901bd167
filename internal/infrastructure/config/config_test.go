package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    func()
		cleanupEnv  func()
		wantError   bool
		checkConfig func(*testing.T, *Config)
	}{
		{
			name: "正常系: デフォルト値で設定を読み込む",
			setupEnv: func() {
				os.Setenv("DB_HOST", "localhost")
				os.Setenv("DB_NAME", "test_db")
				os.Setenv("JWT_SECRET", "test-secret")
			},
			cleanupEnv: func() {
				os.Unsetenv("DB_HOST")
				os.Unsetenv("DB_NAME")
				os.Unsetenv("JWT_SECRET")
			},
			wantError: false,
			checkConfig: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, "test_db", cfg.Database.Database)
				assert.Equal(t, "test-secret", cfg.JWT.Secret)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 3306, cfg.Database.Port)
			},
		},
		{
			name: "正常系: 環境変数から設定を読み込む",
			setupEnv: func() {
				os.Setenv("ENVIRONMENT", "production")
				os.Setenv("SERVER_PORT", "9000")
				os.Setenv("DB_HOST", "db.example.com")
				os.Setenv("DB_PORT", "3307")
				os.Setenv("DB_NAME", "prod_db")
				os.Setenv("JWT_SECRET", "prod-secret")
				os.Setenv("JWT_EXPIRATION", "12h")
			},
			cleanupEnv: func() {
				os.Unsetenv("ENVIRONMENT")
				os.Unsetenv("SERVER_PORT")
				os.Unsetenv("DB_HOST")
				os.Unsetenv("DB_PORT")
				os.Unsetenv("DB_NAME")
				os.Unsetenv("JWT_SECRET")
				os.Unsetenv("JWT_EXPIRATION")
			},
			wantError: false,
			checkConfig: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "production", cfg.Environment)
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.Equal(t, "db.example.com", cfg.Database.Host)
				assert.Equal(t, 3307, cfg.Database.Port)
				assert.Equal(t, "prod_db", cfg.Database.Database)
				assert.Equal(t, "prod-secret", cfg.JWT.Secret)
				assert.Equal(t, 12*time.Hour, cfg.JWT.Expiration)
			},
		},
		{
			name: "正常系: DB_HOSTが未設定でデフォルト値が使われる",
			setupEnv: func() {
				os.Unsetenv("DB_HOST")
				os.Setenv("DB_NAME", "test_db")
				os.Setenv("JWT_SECRET", "test-secret")
			},
			cleanupEnv: func() {
				os.Unsetenv("DB_NAME")
				os.Unsetenv("JWT_SECRET")
			},
			wantError: false,
			checkConfig: func(t *testing.T, cfg *Config) {
				// デフォルト値が使われていることを確認
				assert.Equal(t, "localhost", cfg.Database.Host)
			},
		},
		{
			name: "正常系: DB_NAMEが未設定でデフォルト値が使われる",
			setupEnv: func() {
				os.Setenv("DB_HOST", "localhost")
				os.Unsetenv("DB_NAME")
				os.Setenv("JWT_SECRET", "test-secret")
			},
			cleanupEnv: func() {
				os.Unsetenv("DB_HOST")
				os.Unsetenv("JWT_SECRET")
			},
			wantError: false,
			checkConfig: func(t *testing.T, cfg *Config) {
				// デフォルト値が使われていることを確認
				assert.Equal(t, "kiosk_db", cfg.Database.Database)
			},
		},
		{
			name: "正常系: 硬貨とホッパーの設定を読み込む",
			setupEnv: func() {
				os.Setenv("JWT_SECRET", "test-secret")
				os.Setenv("COIN_DENOMINATIONS", "5,1,10")
				os.Setenv("COIN_RESERVES", "1:10,5:5")
				os.Setenv("COIN_MAX_CHANGE_LIMIT", "100")
				os.Setenv("HOPPERS", "A:1:21:16,B:5:6:26,C:10:5:19")
				os.Setenv("HOPPER_TIMEOUT", "5s")
				os.Setenv("HARDWARE_DRIVER", "pigpio")
			},
			cleanupEnv: func() {
				os.Unsetenv("JWT_SECRET")
				os.Unsetenv("COIN_DENOMINATIONS")
				os.Unsetenv("COIN_RESERVES")
				os.Unsetenv("COIN_MAX_CHANGE_LIMIT")
				os.Unsetenv("HOPPERS")
				os.Unsetenv("HOPPER_TIMEOUT")
				os.Unsetenv("HARDWARE_DRIVER")
			},
			wantError: false,
			checkConfig: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []int64{1, 5, 10}, cfg.Coin.Denominations)
				assert.Equal(t, map[int64]int64{1: 10, 5: 5}, cfg.Coin.Reserves)
				assert.Equal(t, int64(100), cfg.Coin.MaxChangeLimit)
				assert.Equal(t, 5*time.Second, cfg.Dispense.HopperTimeout)
				assert.Equal(t, DriverPigpio, cfg.Hardware.Driver)
				require.Len(t, cfg.Hoppers, 3)
				assert.Equal(t, HopperConfig{ID: "C", Denomination: 10, SignalPin: 5, EnablePin: 19}, cfg.Hoppers[2])
				assert.Equal(t, 8081, cfg.Server.GRPCPort)
			},
		},
		{
			name: "異常系: 不明なハードウェアドライバ",
			setupEnv: func() {
				os.Setenv("JWT_SECRET", "test-secret")
				os.Setenv("HARDWARE_DRIVER", "serial")
			},
			cleanupEnv: func() {
				os.Unsetenv("JWT_SECRET")
				os.Unsetenv("HARDWARE_DRIVER")
			},
			wantError: true,
		},
		{
			name: "異常系: ホッパー設定の形式が不正",
			setupEnv: func() {
				os.Setenv("JWT_SECRET", "test-secret")
				os.Setenv("HOPPERS", "A:1:21")
			},
			cleanupEnv: func() {
				os.Unsetenv("JWT_SECRET")
				os.Unsetenv("HOPPERS")
			},
			wantError: true,
		},
		{
			name: "異常系: 管理APIが有効でAPIキーが空",
			setupEnv: func() {
				os.Setenv("JWT_SECRET", "test-secret")
				os.Setenv("ADMIN_API_ENABLED", "true")
			},
			cleanupEnv: func() {
				os.Unsetenv("JWT_SECRET")
				os.Unsetenv("ADMIN_API_ENABLED")
			},
			wantError: true,
		},
		{
			name: "異常系: 予備枚数に未知の額面",
			setupEnv: func() {
				os.Setenv("JWT_SECRET", "test-secret")
				os.Setenv("COIN_RESERVES", "10:3")
			},
			cleanupEnv: func() {
				os.Unsetenv("JWT_SECRET")
				os.Unsetenv("COIN_RESERVES")
			},
			wantError: true,
		},
		{
			name: "異常系: JWT_SECRETが空",
			setupEnv: func() {
				os.Setenv("DB_HOST", "localhost")
				os.Setenv("DB_NAME", "test_db")
			},
			cleanupEnv: func() {
				os.Unsetenv("DB_HOST")
				os.Unsetenv("DB_NAME")
			},
			wantError:   true,
			checkConfig: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupEnv()
			defer tt.cleanupEnv()

			cfg, err := Load()

			if tt.wantError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, cfg)
				if tt.checkConfig != nil {
					tt.checkConfig(t, cfg)
				}
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		User:     "testuser",
		Password: "testpass",
		Host:     "localhost",
		Port:     3306,
		Database: "testdb",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "testuser")
	assert.Contains(t, dsn, "testpass")
	assert.Contains(t, dsn, "localhost")
	assert.Contains(t, dsn, "3306")
	assert.Contains(t, dsn, "testdb")
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue int
		want         int
	}{
		{
			name:         "環境変数が設定されている",
			envValue:     "123",
			defaultValue: 0,
			want:         123,
		},
		{
			name:         "環境変数が空",
			envValue:     "",
			defaultValue: 456,
			want:         456,
		},
		{
			name:         "環境変数が無効な値",
			envValue:     "invalid",
			defaultValue: 789,
			want:         789,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("TEST_INT", tt.envValue)
			defer os.Unsetenv("TEST_INT")

			got := getEnvAsInt("TEST_INT", tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{
			name:         "環境変数がtrue",
			envValue:     "true",
			defaultValue: false,
			want:         true,
		},
		{
			name:         "環境変数がfalse",
			envValue:     "false",
			defaultValue: true,
			want:         false,
		},
		{
			name:         "環境変数が空",
			envValue:     "",
			defaultValue: true,
			want:         true,
		},
		{
			name:         "環境変数が無効な値",
			envValue:     "invalid",
			defaultValue: false,
			want:         false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("TEST_BOOL", tt.envValue)
			defer os.Unsetenv("TEST_BOOL")

			got := getEnvAsBool("TEST_BOOL", tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue time.Duration
		want         time.Duration
	}{
		{
			name:         "環境変数が有効な時間",
			envValue:     "1h",
			defaultValue: time.Minute,
			want:         time.Hour,
		},
		{
			name:         "環境変数が空",
			envValue:     "",
			defaultValue: time.Minute,
			want:         time.Minute,
		},
		{
			name:         "環境変数が無効な値",
			envValue:     "invalid",
			defaultValue: time.Hour,
			want:         time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("TEST_DURATION", tt.envValue)
			defer os.Unsetenv("TEST_DURATION")

			got := getEnvAsDuration("TEST_DURATION", tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoinConfig_Policy(t *testing.T) {
	cfg := CoinConfig{
		Denominations:    []int64{1, 5},
		Reserves:         map[int64]int64{1: 10, 5: 5},
		MaxChangeLimit:   50,
		SmallChangeBand:  5,
		MediumChangeBand: 20,
		RoundingUnits:    []int64{10, 50},
	}

	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, int64(10), policy.Reserve(1))
	assert.Equal(t, int64(50), policy.MaxChangeLimit)
	assert.Equal(t, 2, policy.Denominations.Len())

	cfg.Denominations = []int64{1, 1}
	_, err = cfg.Policy()
	assert.Error(t, err)
}

func TestConfig_HopperConfigs(t *testing.T) {
	cfg := &Config{
		Dispense: DispenseConfig{
			NoiseFloor:    10 * time.Millisecond,
			MaxValidWidth: 500 * time.Millisecond,
			Cooldown:      30 * time.Millisecond,
			GlitchFilter:  2 * time.Millisecond,
		},
		Hoppers: []HopperConfig{{ID: "A", Denomination: 1, SignalPin: 21, EnablePin: 16}},
	}

	got, err := cfg.HopperConfigs()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].ID)
	assert.Equal(t, int64(1), got[0].Denomination.Value())
	assert.Equal(t, 2*time.Millisecond, got[0].GlitchFilter)

	cfg.Dispense.MaxValidWidth = time.Millisecond
	_, err = cfg.HopperConfigs()
	assert.Error(t, err)
}

func TestConfig_AcceptorSettings(t *testing.T) {
	base := func() *Config {
		return &Config{
			Acceptor: AcceptorConfig{
				Enabled:       true,
				PulseValues:   map[int64]int64{1: 1, 2: 5},
				PulseTimeout:  500 * time.Millisecond,
				NoiseFloor:    5 * time.Millisecond,
				MaxValidWidth: 150 * time.Millisecond,
				Cooldown:      20 * time.Millisecond,
				GlitchFilter:  2 * time.Millisecond,
				RetryDelay:    5 * time.Second,
			},
		}
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"正常系: デフォルトのパルス対応", func(*Config) {}, false},
		{"異常系: パルス対応が空", func(c *Config) { c.Acceptor.PulseValues = nil }, true},
		{"異常系: 額面が0", func(c *Config) { c.Acceptor.PulseValues = map[int64]int64{1: 0} }, true},
		{"異常系: パルス数が0", func(c *Config) { c.Acceptor.PulseValues = map[int64]int64{0: 1} }, true},
		{"異常系: パルス待ち時間が0", func(c *Config) { c.Acceptor.PulseTimeout = 0 }, true},
		{"異常系: フィルタ幅が不正", func(c *Config) { c.Acceptor.MaxValidWidth = time.Millisecond }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.modify(cfg)
			got, err := cfg.AcceptorSettings()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, AcceptorID, got.ID)
			assert.Equal(t, int64(1), got.PulseValues[1].Value())
			assert.Equal(t, int64(5), got.PulseValues[2].Value())
			assert.Equal(t, 500*time.Millisecond, got.PulseTimeout)
			assert.Equal(t, 150*time.Millisecond, got.Filter.MaxValidWidth)
		})
	}
}

func TestConfig_ValidateHardware_Acceptor(t *testing.T) {
	cfg := &Config{
		Hardware: HardwareConfig{Driver: DriverSimulated},
		Dispense: DispenseConfig{
			NoiseFloor:    10 * time.Millisecond,
			MaxValidWidth: 500 * time.Millisecond,
			Cooldown:      30 * time.Millisecond,
		},
		Hoppers: []HopperConfig{{ID: AcceptorID, Denomination: 1, SignalPin: 21, EnablePin: 16}},
		Acceptor: AcceptorConfig{
			Enabled:       true,
			PulseValues:   map[int64]int64{1: 1},
			PulseTimeout:  500 * time.Millisecond,
			NoiseFloor:    5 * time.Millisecond,
			MaxValidWidth: 150 * time.Millisecond,
		},
	}
	assert.ErrorContains(t, cfg.validateHardware(), "reserved")

	cfg.Acceptor.Enabled = false
	assert.NoError(t, cfg.validateHardware())
}

func TestLoadHardware_FillsLedgerSettings(t *testing.T) {
	os.Setenv("DB_NAME", "hw_db")
	os.Setenv("HARDWARE_LOCK_FILE", "/run/change-server/hw.lock")
	defer func() {
		os.Unsetenv("DB_NAME")
		os.Unsetenv("HARDWARE_LOCK_FILE")
	}()

	cfg, err := LoadHardware()
	require.NoError(t, err)
	assert.Equal(t, "hw_db", cfg.Database.Database)
	assert.Equal(t, []int64{1, 5}, cfg.Coin.Denominations)
	assert.Equal(t, "/run/change-server/hw.lock", cfg.Hardware.LockFile)
}

func TestGetEnvAsInt64Map(t *testing.T) {
	os.Setenv("TEST_MAP", "1:10, 5:5")
	defer os.Unsetenv("TEST_MAP")
	assert.Equal(t, map[int64]int64{1: 10, 5: 5}, getEnvAsInt64Map("TEST_MAP", nil))

	os.Setenv("TEST_MAP", "1=10")
	assert.Equal(t, map[int64]int64{7: 7}, getEnvAsInt64Map("TEST_MAP", map[int64]int64{7: 7}))
}

func TestAdminAPIConfig_AllowsIP(t *testing.T) {
	tests := []struct {
		name    string
		ip      string
		allowed []string
		want    bool
	}{
		{"正常系: 許可リストなし", "203.0.113.9", nil, true},
		{"正常系: CIDRに含まれる", "172.16.5.4", []string{"172.16.0.0/12"}, true},
		{"正常系: IPv6", "::1", []string{"::1"}, true},
		{"異常系: 前方一致だけでは許可しない", "10.0.0.100", []string{"10.0.0.1"}, false},
		{"異常系: CIDR外", "172.32.0.1", []string{"172.16.0.0/12"}, false},
		{"異常系: 不正なIP", "not-an-ip", []string{"0.0.0.0/0"}, false},
		{"異常系: 不正なエントリは無視", "10.0.0.1", []string{"10.0.0.0/99", "garbage"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &AdminAPIConfig{AllowedIPs: tt.allowed}
			assert.Equal(t, tt.want, cfg.AllowsIP(tt.ip))
		})
	}
}
