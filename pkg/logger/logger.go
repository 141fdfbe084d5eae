package logger

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	log "github.com/sirupsen/logrus"
)

// Options configures log output
type Options struct {
	Level         string // DEBUG, INFO, WARN, ERROR
	Directory     string // empty logs to stdout only
	FileMaxAgeDay int
}

// LogFormatter log formatter structure
type LogFormatter struct {
	TimestampFormat string
	LevelDesc       []string
}

// Format format entry in custom format
func (f *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	timestamp := entry.Time.Format(f.TimestampFormat)
	level := f.LevelDesc[entry.Level]

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", timestamp, level, entry.Message)
	for k, v := range entry.Data {
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func init() {
	log.SetFormatter(newFormatter())
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
}

func newFormatter() *LogFormatter {
	return &LogFormatter{
		TimestampFormat: "2006-01-02 15:04:05.000",
		LevelDesc:       []string{"PANIC", "FATAL", "ERROR", "WARN", "INFO", "DEBUG", "TRACE"},
	}
}

// Init initializes the logger. Output goes to stdout and, when a directory
// is set, to an hourly rotated file under a per-day folder.
func Init(opts Options) error {
	log.SetFormatter(newFormatter())
	log.SetLevel(parseLevel(opts.Level))

	if opts.Directory == "" {
		log.SetOutput(os.Stdout)
		return nil
	}

	maxAge := opts.FileMaxAgeDay
	if maxAge <= 0 {
		maxAge = 2
	}

	logFile := filepath.Join(opts.Directory, ".log")
	dateFolder, err := createLogFolder(logFile)
	if err != nil {
		return fmt.Errorf("create log folder: %w", err)
	}

	rl, err := initializeLogRotation(logFile, dateFolder, maxAge)
	if err != nil {
		return fmt.Errorf("init log rotation: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rl))

	deleteOldLogFilesRoutine(opts.Directory, maxAge)
	return nil
}

func parseLevel(level string) log.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return log.DebugLevel
	case "WARN", "WARNING":
		return log.WarnLevel
	case "ERROR":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// IsDebug reports whether debug logging is enabled
func IsDebug() bool {
	return log.IsLevelEnabled(log.DebugLevel)
}

// Info logs informational messages
func Info(message string) {
	log.Info(message)
}

// Error logs error messages
func Error(message string) {
	log.Error(message)
}

// Debug logs debug messages
func Debug(message string) {
	log.Debug(message)
}

// Warn logs warning messages
func Warn(message string) {
	log.Warn(message)
}

// Fatal logs fatal error and exits
func Fatal(message string) {
	log.Fatal(message)
}

// Infof logs formatted informational message
func Infof(format string, args ...interface{}) {
	log.Infof(format, args...)
}

// Warnf logs formatted warning message
func Warnf(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

// Errorf logs formatted error message
func Errorf(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

// Debugf logs formatted debug message
func Debugf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

// WithFields logs with additional context
func WithFields(fields map[string]interface{}, message string) {
	log.WithFields(log.Fields(fields)).Info(message)
}

// WriteLog writes a log entry at the specified level tagged with a request id
func WriteLog(level string, requestID string, key string, message interface{}) {
	if requestID == "" {
		requestID = "no-request-id"
	}

	msg := fmt.Sprintf("[%v] [%v] | %+v", key, requestID, message)
	switch strings.ToUpper(level) {
	case "ERROR":
		log.Error(msg)
	case "WARN":
		log.Warn(msg)
	case "DEBUG":
		log.Debug(msg)
	default:
		log.Info(msg)
	}
}

// createLogFolder creates a folder for logs based on the current date
func createLogFolder(logFile string) (string, error) {
	baseDir := filepath.Dir(logFile)
	dateFolder := filepath.Join(baseDir, time.Now().Format("2006-01-02"))
	err := os.MkdirAll(dateFolder, 0755)
	return dateFolder, err
}

// initializeLogRotation rotates hourly and gzips the previous file
func initializeLogRotation(logFile, dateFolder string, logFileMaxAge int) (*rotatelogs.RotateLogs, error) {
	return rotatelogs.New(
		fmt.Sprintf("%s/%%Y-%%m-%%d-%%H%s", dateFolder, filepath.Base(logFile)),
		rotatelogs.WithLinkName(fmt.Sprintf("%s/%s", dateFolder, filepath.Base(logFile))),
		rotatelogs.WithRotationTime(time.Hour),
		rotatelogs.WithMaxAge(time.Duration(logFileMaxAge)*24*time.Hour),
		rotatelogs.WithHandler(rotatelogs.HandlerFunc(func(e rotatelogs.Event) {
			if e.Type() != rotatelogs.FileRotatedEventType {
				return
			}
			if err := compressLogFile(e.(*rotatelogs.FileRotatedEvent).PreviousFile()); err != nil {
				fmt.Fprintf(os.Stderr, "log compression failed: %v\n", err)
			}
		})),
	)
}

// deleteOldLogFilesRoutine starts a routine to delete old log folders
func deleteOldLogFilesRoutine(logDirectory string, logFileMaxAge int) {
	go func() {
		for {
			deleteOldDateFolders(logDirectory, logFileMaxAge)
			time.Sleep(time.Hour)
		}
	}()
}

// deleteOldDateFolders deletes date folders older than the specified max age
func deleteOldDateFolders(baseDir string, maxAgeDays int) {
	cutoff := time.Now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "read log directory %s: %v\n", baseDir, err)
		}
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(baseDir, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				fmt.Fprintf(os.Stderr, "delete log directory %s: %v\n", path, err)
			}
		}
	}
}

// compressLogFile gzips src next to itself and removes the original
func compressLogFile(src string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open log file: %v", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat log file: %v", err)
	}

	gzf, err := os.OpenFile(src+".gz", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fi.Mode())
	if err != nil {
		return fmt.Errorf("failed to open compressed log file: %v", err)
	}
	defer gzf.Close()

	gz := gzip.NewWriter(gzf)
	if _, err := io.Copy(gz, f); err != nil {
		gz.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
