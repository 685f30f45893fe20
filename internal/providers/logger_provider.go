package providers

import (
	"fmt"
	"io"
	"jobstreak/internal/structures"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type TypeEnum int

const (
	TypeApp TypeEnum = iota
	TypeSync
	TypeMessage
	TypeStorage
	TypeBroadcast
)

var typeNames = map[TypeEnum]string{
	TypeApp:       "app",
	TypeSync:      "sync",
	TypeMessage:   "message",
	TypeStorage:   "storage",
	TypeBroadcast: "broadcast",
}

func (t TypeEnum) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "app"
}

type Logger interface {
	Errorf(t TypeEnum, format string, args ...interface{})
	Warnf(t TypeEnum, format string, args ...interface{})
	Debugf(t TypeEnum, format string, args ...interface{})
	Infof(t TypeEnum, format string, args ...interface{})
	Fatalf(t TypeEnum, format string, args ...interface{})
	Close()
}

type LogProvider struct {
	loggers map[TypeEnum]zerolog.Logger
	closers []io.Closer
}

// GetLogTypeByAction maps an inbound intent action to the log category it is written to.
func GetLogTypeByAction(action string) TypeEnum {
	switch action {
	case "syncStats", "updateStats":
		return TypeSync
	case "refreshStats", "statsUpdated", "updateButtonStates":
		return TypeBroadcast
	default:
		return TypeMessage
	}
}

func NewLogProvider(conf *structures.Config) (Logger, error) {
	info, err := os.Stat(conf.Logger.Dir)
	if err != nil {
		return nil, fmt.Errorf("log dir %s: %w", conf.Logger.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("log dir %s is not a directory", conf.Logger.Dir)
	}

	level, err := zerolog.ParseLevel(conf.Logger.Level)
	if err != nil {
		return nil, err
	}

	maxSize := conf.Logger.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 50
	}

	lp := &LogProvider{loggers: make(map[TypeEnum]zerolog.Logger, len(typeNames))}
	for t, name := range typeNames {
		path := filepath.Join(conf.Logger.Dir, name+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, os.FileMode(conf.Logger.Mode))
		if err != nil {
			lp.Close()
			return nil, err
		}
		_ = f.Close()

		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSize,
			MaxBackups: conf.Logger.MaxBackups,
		}
		lp.closers = append(lp.closers, rotator)

		var w io.Writer = rotator
		if conf.Debug {
			w = zerolog.MultiLevelWriter(rotator, zerolog.ConsoleWriter{Out: os.Stderr})
		}
		lp.loggers[t] = zerolog.New(w).Level(level).With().Timestamp().Str("type", name).Logger()
	}
	return lp, nil
}

func (lp *LogProvider) logger(t TypeEnum) *zerolog.Logger {
	l, ok := lp.loggers[t]
	if !ok {
		l = lp.loggers[TypeApp]
	}
	return &l
}

func (lp *LogProvider) Errorf(t TypeEnum, format string, args ...interface{}) {
	lp.logger(t).Error().Msgf(format, args...)
}

func (lp *LogProvider) Warnf(t TypeEnum, format string, args ...interface{}) {
	lp.logger(t).Warn().Msgf(format, args...)
}

func (lp *LogProvider) Debugf(t TypeEnum, format string, args ...interface{}) {
	lp.logger(t).Debug().Msgf(format, args...)
}

func (lp *LogProvider) Infof(t TypeEnum, format string, args ...interface{}) {
	lp.logger(t).Info().Msgf(format, args...)
}

func (lp *LogProvider) Fatalf(t TypeEnum, format string, args ...interface{}) {
	lp.logger(t).Fatal().Msgf(format, args...)
}

func (lp *LogProvider) Close() {
	for _, c := range lp.closers {
		_ = c.Close()
	}
}
