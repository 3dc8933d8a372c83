package cmd

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// configureLogging sets the global logrus level and formatter.
// Production logs are JSON, everything else is human readable text.
func configureLogging(levelName, environment string) {
	log.SetOutput(os.Stdout)

	level, err := log.ParseLevel(strings.ToLower(levelName))
	if err != nil {
		log.Warnf("Invalid LOG_LEVEL '%s', defaulting to INFO", levelName)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
}
