package agents

import (
	"testing"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"meridian/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *logger.Logger {
	return logger.New(zap.NewNop())
}
