package pushlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	core, logs := observer.New(zap.InfoLevel)
	l := zap.New(core).Sugar()
	OrNop(l).Infow("epoch done", "epoch", 3)
	assert.Equal(t, 1, logs.FilterMessage("epoch done").Len())
}

func TestConstructors(t *testing.T) {
	assert.NotNil(t, New())
	assert.NotNil(t, NewConsole())
}
