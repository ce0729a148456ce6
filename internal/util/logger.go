package util

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const LOG_BUFFER_SIZE = 1000

var (
	ErrLogNotInitialized      = errors.New("log object is not initialized yet")
	LOG_FOLDER_NAME_WITH_PATH = ".." + string(os.PathSeparator) + "log"
	globalLogLevel            = LOG_LEVEL_INFO
)

const (
	LOG_LEVEL_ERROR = iota + 1
	LOG_LEVEL_WARN
	LOG_LEVEL_INFO
	LOG_LEVEL_DEBUG
)

// MetricsLogger writes leveled events to a log file through a buffered
// channel so request handlers never block on disk. The zero value is
// usable in tests; LogEvent on it reports ErrLogNotInitialized and drops
// the message.
type MetricsLogger struct {
	logBuffer         chan LeveledLogger
	handle            *os.File
	wg                *sync.WaitGroup
	loggerInitialized bool
	zapLogger         *zap.Logger
}

type LeveledLogger struct {
	level  int
	logMsg string
}

func (m *MetricsLogger) Init(logFileName string, rewrite bool) error {

	m.wg = new(sync.WaitGroup)
	m.logBuffer = make(chan LeveledLogger, LOG_BUFFER_SIZE)

	fileWithRelPath := LOG_FOLDER_NAME_WITH_PATH + string(os.PathSeparator) + logFileName

	mode := os.O_RDWR | os.O_CREATE | os.O_APPEND
	if rewrite {
		mode = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	}

	var err error
	m.handle, err = os.OpenFile(fileWithRelPath, mode, 0666)
	if err != nil {
		return err
	}

	m.zapLoggerInit()

	m.wg.Add(1)
	go m.logWriter()

	m.loggerInitialized = true
	return nil
}

func (m *MetricsLogger) zapLoggerInit() {

	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(config),
		zapcore.AddSync(m.handle),
		GlobalLogLevelSetter(),
	)
	m.zapLogger = zap.New(core)
}

func GlobalLogLevelSetter() zapcore.Level {
	switch globalLogLevel {
	case LOG_LEVEL_ERROR:
		return zapcore.ErrorLevel
	case LOG_LEVEL_WARN:
		return zapcore.WarnLevel
	case LOG_LEVEL_DEBUG:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func (m *MetricsLogger) logWriter() {
	for logdata := range m.logBuffer {
		switch logdata.level {
		case LOG_LEVEL_ERROR:
			m.zapLogger.Error(logdata.logMsg)
		case LOG_LEVEL_WARN:
			m.zapLogger.Warn(logdata.logMsg)
		case LOG_LEVEL_DEBUG:
			m.zapLogger.Debug(logdata.logMsg)
		default:
			m.zapLogger.Info(logdata.logMsg)
		}
	}
	m.wg.Done()
}

// LogEvent accepts either a bare message or a level constant followed by
// message parts, matching call sites like
// LogEvent(LOG_LEVEL_ERROR, "failed: ", err).
func (m *MetricsLogger) LogEvent(v ...interface{}) error {
	var msg string
	level := LOG_LEVEL_INFO

	if len(v) == 1 {
		msg = fmt.Sprint(v[0])
	} else if len(v) > 1 {
		if lvl, ok := v[0].(int); ok && lvl >= LOG_LEVEL_ERROR && lvl <= LOG_LEVEL_DEBUG {
			level = lvl
			msg = fmt.Sprint(v[1:]...)
		} else {
			msg = fmt.Sprint(v...)
		}
	}

	if !m.loggerInitialized {
		return ErrLogNotInitialized
	}
	m.logBuffer <- LeveledLogger{level, msg}
	return nil
}

func (m *MetricsLogger) DeInit() {

	if !m.loggerInitialized {
		return
	}
	m.loggerInitialized = false
	close(m.logBuffer)
	m.wg.Wait()

	m.zapLogger.Sync()
	m.handle.Close()
}

func SetCommonLoggerAttributes(GlobalLogLevel int) {
	globalLogLevel = GlobalLogLevel
}

func SetLoggerPath(logPath string) {
	LOG_FOLDER_NAME_WITH_PATH = logPath
}

func CheckAndCreateLogFolder(FolderNameWithPath string) {
	_, err := os.Stat(FolderNameWithPath)

	if os.IsNotExist(err) {
		err := os.MkdirAll(FolderNameWithPath, 0755)
		if err != nil {
			fmt.Println("Failed to create the log folder and Mkdir err :: ", err)
		}
	}
}
