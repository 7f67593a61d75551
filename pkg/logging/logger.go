package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // json, pretty
	OutputFile string `json:"output_file"` // file path for logs, empty for none
	MaxSize    int64  `json:"max_size"`    // max file size in bytes
	Console    bool   `json:"console"`     // also log to stderr
}

// DefaultLogConfig returns sensible defaults
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level:      "info",
		Format:     "json",
		OutputFile: "logs/caia-extract.log",
		MaxSize:    100 * 1024 * 1024, // 100MB
		Console:    true,
	}
}

// SetupLogger configures the global logger
func SetupLogger(config *LogConfig) error {
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer

	// Console goes to stderr so CLI output on stdout stays machine readable
	if config.Console {
		if config.Format == "pretty" {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: time.RFC3339,
			})
		} else {
			writers = append(writers, os.Stderr)
		}
	}

	if config.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0755); err != nil {
			return err
		}
		if err := rotateIfLarge(config.OutputFile, config.MaxSize); err != nil {
			return err
		}

		logFile, err := os.OpenFile(config.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		writers = append(writers, logFile)
	}

	switch len(writers) {
	case 0:
		log.Logger = zerolog.Nop()
	case 1:
		log.Logger = zerolog.New(writers[0]).With().Timestamp().Logger()
	default:
		log.Logger = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()
	}

	log.Debug().
		Str("level", config.Level).
		Str("format", config.Format).
		Str("output_file", config.OutputFile).
		Bool("console", config.Console).
		Msg("Logger initialized")

	return nil
}

// rotateIfLarge moves an oversized log aside as <file>.1 before it is reopened
func rotateIfLarge(path string, maxSize int64) error {
	if maxSize <= 0 {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() < maxSize {
		return nil
	}
	return os.Rename(path, path+".1")
}

// GetLogger returns a contextual logger
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// GetEngineLogger returns a logger for OCR engine attempts
func GetEngineLogger(engine, strategy string) zerolog.Logger {
	return log.With().
		Str("engine", engine).
		Str("strategy", strategy).
		Logger()
}

// GetMemoryLogger returns a logger for correction memory operations
func GetMemoryLogger(operation, backend string) zerolog.Logger {
	return log.With().
		Str("memory_operation", operation).
		Str("backend", backend).
		Logger()
}

// GetWorkflowLogger returns a logger for workflow operations
func GetWorkflowLogger(workflowID, activityName string) zerolog.Logger {
	return log.With().
		Str("workflow_id", workflowID).
		Str("activity", activityName).
		Logger()
}
