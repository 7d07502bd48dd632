package logging

import (
	"strings"

	"github.com/router-for-me/passwordpolicy/config"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup applies the logging configuration: level, and rotated file output
// when a file is configured.
func Setup(cfg config.LogConfig) {
	level := log.InfoLevel
	if name := strings.TrimSpace(cfg.Level); name != "" {
		parsed, errParse := log.ParseLevel(name)
		if errParse != nil {
			log.WithError(errParse).Warnf("unknown log level %q, using info", name)
		} else {
			level = parsed
		}
	}
	log.SetLevel(level)

	if file := strings.TrimSpace(cfg.File); file != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		maxBackups := cfg.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 3
		}
		log.SetOutput(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			Compress:   true,
		})
	}
}
