package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	logger *zap.Logger
	once   sync.Once
)

// GetLogger returns the process wide zap.Logger, built once.
// APP_ENV=production selects the JSON production config, anything else the development one.
func GetLogger() *zap.Logger {
	once.Do(func() {
		var err error
		if strings.EqualFold(strings.TrimSpace(os.Getenv("APP_ENV")), "production") {
			logger, err = zap.NewProduction()
		} else {
			logger, err = zap.NewDevelopment()
		}
		if err != nil {
			panic("failed logger setup : " + err.Error())
		}
	})
	return logger
}
