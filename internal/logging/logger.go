package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LoggerSetupParams struct {
	// LogFileName enables a rotating log file; ".log" is appended when missing.
	LogFileName   string
	LogToStdout   bool
	LogLevel      string
	LogFormatJSON bool
}

// Setup configures the global logrus logger. The returned function closes the
// log file, if one was opened, and is safe to call when there is none.
func Setup(params LoggerSetupParams) func() error {
	if params.LogFormatJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logrus.SetLevel(GetLevel(params.LogLevel))

	out, closeFn := output(params)
	logrus.SetOutput(out)
	return closeFn
}

// output picks the writers requested by params. With neither stdout nor a
// file, logs are discarded.
func output(params LoggerSetupParams) (io.Writer, func() error) {
	var writers []io.Writer
	closeFn := func() error { return nil }

	if params.LogToStdout {
		writers = append(writers, os.Stdout)
	}
	if params.LogFileName != "" {
		rotating := &lumberjack.Logger{
			Filename:   logFilePath(params.LogFileName),
			MaxSize:    50, // megabytes
			MaxBackups: 10,
			LocalTime:  false, // UTC timestamps in backup names
			Compress:   true,
		}
		writers = append(writers, rotating)
		closeFn = rotating.Close
	}

	switch len(writers) {
	case 0:
		return io.Discard, closeFn
	case 1:
		return writers[0], closeFn
	default:
		return io.MultiWriter(writers...), closeFn
	}
}

func logFilePath(name string) string {
	if strings.HasSuffix(name, ".log") {
		return name
	}
	return name + ".log"
}

// GetLevel maps a config string to a logrus level; unknown values mean info.
func GetLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}
