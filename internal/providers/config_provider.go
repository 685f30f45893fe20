package providers

import (
	"fmt"
	"github.com/spf13/viper"
	"jobstreak/internal/structures"
	"path/filepath"
	"strings"
	"time"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.driver", "file")
	v.SetDefault("storage.lockTimeout", 5*time.Second)
	v.SetDefault("storage.watch", true)
	v.SetDefault("remote.driver", "memory")
	v.SetDefault("remote.mirrorRate", 5.0)
	v.SetDefault("sync.probeInterval", 30*time.Second)
	v.SetDefault("sync.sweepInterval", 5*time.Minute)
	v.SetDefault("sync.dailyCheckInterval", time.Hour)
	v.SetDefault("sync.pendingMaxAge", time.Hour)
	v.SetDefault("sync.pushTimeout", 15*time.Second)
	v.SetDefault("sync.timezone", "UTC")
	v.SetDefault("broadcast.maxParallel", 8)
	v.SetDefault("broadcast.sendTimeout", 5*time.Second)
	v.SetDefault("cache.ttl", 5)
}

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	v := viper.New()
	setDefaults(v)

	filename := filepath.Base(flags.ConfigPath)
	v.AddConfigPath(filepath.Dir(flags.ConfigPath))
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.SetConfigType("yaml")

	v.BindEnv("logger.level", "JOBSTREAK_LOG_LEVEL")
	v.BindEnv("storage.path", "JOBSTREAK_STORAGE_PATH")
	v.BindEnv("storage.driver", "JOBSTREAK_STORAGE_DRIVER")
	v.BindEnv("remote.driver", "JOBSTREAK_REMOTE_DRIVER")
	v.BindEnv("remote.dsn", "JOBSTREAK_REMOTE_DSN")
	v.BindEnv("remote.mirrorUrl", "JOBSTREAK_MIRROR_URL")
	v.BindEnv("remote.connectivityUrl", "JOBSTREAK_CONNECTIVITY_URL")
	v.BindEnv("sync.sweepInterval", "JOBSTREAK_SWEEP_INTERVAL")
	v.BindEnv("sync.probeInterval", "JOBSTREAK_PROBE_INTERVAL")
	v.BindEnv("cache.enabled", "JOBSTREAK_CACHE_ENABLED")

	err := v.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "JobStreakSync"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
