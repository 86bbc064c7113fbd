package server

import (
	"os"
	"testing"

	"clubledger/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init()

	code := m.Run()
	os.Exit(code)
}
