package structures

import (
	"net/http"
	"time"
)

type CliFlags struct {
	ConfigPath string
	DebugMode  bool
}

type Route struct {
	Url     string
	Methods []string
	Handler http.Handler
}

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type LoggerConfig struct {
	Level      string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode       uint32 `yaml:"mode" validate:"required|uint"`
	Dir        string `yaml:"dir" validate:"required|unixPath"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
}

type StorageConfig struct {
	Driver      string        `yaml:"driver" validate:"required|in:file,sqlite"`
	Path        string        `yaml:"path" validate:"required|unixPath"`
	LockTimeout time.Duration `yaml:"lockTimeout"`
	Watch       bool          `yaml:"watch"`
}

type RemoteConfig struct {
	Driver          string  `yaml:"driver" validate:"required|in:postgres,memory"`
	DSN             string  `yaml:"dsn"`
	MirrorURL       string  `yaml:"mirrorUrl"`
	ConnectivityURL string  `yaml:"connectivityUrl"`
	ProbeURL        string  `yaml:"probeUrl"`
	KeyringService  string  `yaml:"keyringService"`
	KeyringAccount  string  `yaml:"keyringAccount"`
	MirrorRate      float64 `yaml:"mirrorRate"`
}

type SyncConfig struct {
	ProbeInterval      time.Duration `yaml:"probeInterval" validate:"required|min:1"`
	SweepInterval      time.Duration `yaml:"sweepInterval" validate:"required|min:1"`
	DailyCheckInterval time.Duration `yaml:"dailyCheckInterval" validate:"required|min:1"`
	PendingMaxAge      time.Duration `yaml:"pendingMaxAge"`
	PushTimeout        time.Duration `yaml:"pushTimeout"`
	Timezone           string        `yaml:"timezone"`
}

type BroadcastConfig struct {
	MaxParallel int           `yaml:"maxParallel"`
	SendTimeout time.Duration `yaml:"sendTimeout"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
	TTL     int  `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName   string
	Debug     bool
	Path      string
	WebServer Server          `yaml:"webServer"`
	Logger    LoggerConfig    `yaml:"logger"`
	Storage   StorageConfig   `yaml:"storage"`
	Remote    RemoteConfig    `yaml:"remote"`
	Sync      SyncConfig      `yaml:"sync"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Cache     CacheConfig     `yaml:"cache"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}
