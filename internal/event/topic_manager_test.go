package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestDefaultTopicConfigs(t *testing.T) {
	configs := DefaultTopicConfigs()

	assert.Len(t, configs, 3)

	raw, ok := configs["logs.raw"]
	assert.True(t, ok)
	assert.Equal(t, 12, raw.Partitions)
	assert.Equal(t, 1, raw.ReplicationFactor)
	assert.Equal(t, int64(7*24*60*60*1000), raw.RetentionMs)
	assert.Equal(t, "delete", raw.CleanupPolicy)

	enriched, ok := configs["logs.enriched"]
	assert.True(t, ok)
	assert.Equal(t, 12, enriched.Partitions)
	assert.Equal(t, int64(7*24*60*60*1000), enriched.RetentionMs)

	dlq, ok := configs["logs.dlq"]
	assert.True(t, ok)
	assert.Equal(t, 3, dlq.Partitions)
	assert.Equal(t, int64(30*24*60*60*1000), dlq.RetentionMs)
}

func TestDefaultTopicManagerConfig(t *testing.T) {
	cfg := DefaultTopicManagerConfig()

	assert.Equal(t, []string{"localhost:19092"}, cfg.Brokers)
	assert.True(t, cfg.AutoCreate)
	assert.Equal(t, 10*time.Second, cfg.DialTimeout)
	assert.Len(t, cfg.TopicConfigs, 3)
}

func TestNewTopicManager(t *testing.T) {
	tests := []struct {
		name    string
		config  *TopicManagerConfig
		logger  *zap.Logger
		wantErr bool
	}{
		{
			name:    "nil config uses defaults",
			config:  nil,
			logger:  zap.NewNop(),
			wantErr: false,
		},
		{
			name: "empty brokers",
			config: &TopicManagerConfig{
				Brokers: []string{},
			},
			logger:  zap.NewNop(),
			wantErr: true,
		},
		{
			name: "nil logger is allowed",
			config: &TopicManagerConfig{
				Brokers:      []string{"localhost:9092"},
				TopicConfigs: DefaultTopicConfigs(),
			},
			logger:  nil,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm, err := NewTopicManager(tt.config, tt.logger)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, tm)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, tm)
			assert.NoError(t, tm.Close())
		})
	}
}

func TestTopicManager_EnsureTopicsAutoCreateDisabled(t *testing.T) {
	tm, err := NewTopicManager(&TopicManagerConfig{
		Brokers:      []string{"localhost:9092"},
		TopicConfigs: DefaultTopicConfigs(),
		AutoCreate:   false,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer tm.Close()

	// No broker contact when auto_create is off
	assert.NoError(t, tm.EnsureTopics(context.Background()))
}

func TestTopicManager_DialTimeoutDefault(t *testing.T) {
	tm, err := NewTopicManager(&TopicManagerConfig{
		Brokers: []string{"localhost:9092"},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer tm.Close()

	assert.Equal(t, 10*time.Second, tm.config.DialTimeout)
}
