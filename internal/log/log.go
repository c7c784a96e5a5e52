package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

type Fields = logrus.Fields

// Options configures the process logger
type Options struct {
	Level   string
	File    string
	NoColor bool
}

// Init configures the package logger. Only the first call has an effect.
func Init(opts Options) *logrus.Logger {
	once.Do(func() {
		logger = newLogger(opts, os.Stderr)
	})
	return logger
}

func newLogger(opts Options, stderr io.Writer) *logrus.Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	l.SetFormatter(&formatter.Formatter{
		NoColors:        opts.NoColor,
		TimestampFormat: "02 Jan 06 - 15:04:05",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
		},
	})

	writers := []io.Writer{stderr}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}

	l.SetOutput(io.MultiWriter(writers...))
	l.SetReportCaller(true)
	return l
}

func get() *logrus.Logger {
	if logger == nil {
		return Init(Options{Level: "info"})
	}
	return logger
}

func Debug(fields Fields, msg string) {
	get().WithFields(fields).Debug(msg)
}

func Info(fields Fields, msg string) {
	get().WithFields(fields).Info(msg)
}

func Warn(fields Fields, msg string) {
	get().WithFields(fields).Warn(msg)
}

func Error(fields Fields, msg string) {
	get().WithFields(fields).Error(msg)
}

func Fatal(fields Fields, msg string) {
	get().WithFields(fields).Fatal(msg)
}
