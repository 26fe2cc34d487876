package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-physio/internal/common/config"
)

func TestNewClient_BrokerUnreachable(t *testing.T) {
	c, err := NewClient(&config.MQTTConfig{
		Broker:   "tcp://127.0.0.1:1",
		ClientID: "wisefido-physio-test",
	}, zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "failed to connect to MQTT broker")
}
