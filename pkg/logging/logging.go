// Package logging configures the process-wide logger: JSON lines to
// stdout, a rotated file, or both.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the log destination and file rotation policy.
type Config struct {
	Output     string // stdout, file, both
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Init points the standard logger at the configured destination. Safe to
// call once at startup before any goroutines log.
func Init(cfg Config) {
	var w io.Writer = os.Stdout
	if cfg.Output == "file" || cfg.Output == "both" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		if cfg.Output == "both" {
			w = io.MultiWriter(os.Stdout, rotated)
		} else {
			w = rotated
		}
	}
	log.SetFlags(0)
	log.SetOutput(w)
}

// Field is one key/value pair on a log line.
type Field struct {
	Key   string
	Value any
}

func Str(key, value string) Field { return Field{Key: key, Value: value} }

func Uint(key string, value uint) Field { return Field{Key: key, Value: value} }

func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

func Err(err error) Field { return Field{Key: "error", Value: fmt.Sprintf("%v", err)} }

func Info(msg string, fields ...Field) { emit("info", msg, fields) }

func Warn(msg string, fields ...Field) { emit("warn", msg, fields) }

func Error(msg string, fields ...Field) { emit("error", msg, fields) }

func emit(level, msg string, fields []Field) {
	entry := map[string]any{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": level,
		"msg":   msg,
	}
	for _, f := range fields {
		entry[f.Key] = f.Value
	}
	bs, err := json.Marshal(entry)
	if err != nil {
		log.Printf(`{"level":%q,"msg":%q}`, level, msg)
		return
	}
	log.Print(string(bs))
}
