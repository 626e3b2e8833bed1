package app

import (
	"io"

	log "github.com/sirupsen/logrus"
)

// testLogger возвращает logger, который ничего не пишет в вывод тестов.
func testLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "test")
}
