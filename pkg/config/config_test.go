package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
environment: test
engine:
  zone: UTC
feed:
  url: http://feed.local/records
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 10*time.Second, c.Server.ReadTimeout)
	assert.Equal(t, []string{"*"}, c.Server.CORSOrigins)
	assert.Equal(t, 20, c.Engine.DisplayCap)
	assert.Equal(t, "16:00", c.Engine.Cutoff)
	assert.Equal(t, "http", c.Feed.Source)
	assert.Equal(t, "@every 1m", c.Feed.PollSchedule)
	assert.Equal(t, uint32(5), c.Feed.Breaker.FailureThreshold)
	assert.Equal(t, "recoboard.feed", c.Kafka.FeedTopic)
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.Equal(t, 720*time.Hour, c.Cache.NoticeTTL)
	assert.Equal(t, "anomaly.digest", c.Collector.Topic)
	assert.True(t, c.Metrics.Enabled)
}

func TestFileValuesWinOverDefaults(t *testing.T) {
	c, err := Parse([]byte(minimal + `
metrics:
  enabled: false
server:
  port: 9999
  cors_origins: ["https://app.example"]
`))
	require.NoError(t, err)
	assert.False(t, c.Metrics.Enabled)
	assert.Equal(t, 9999, c.Server.Port)
	assert.Equal(t, []string{"https://app.example"}, c.Server.CORSOrigins)
}

func TestStrictContractRule(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)
	assert.True(t, c.StrictContract())

	c.Environment = EnvProduction
	assert.False(t, c.StrictContract())

	on := true
	c.Engine.StrictContract = &on
	assert.True(t, c.StrictContract())
}

func TestValidateRules(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"http feed needs url", "environment: test\nengine: {zone: UTC}\n", "feed.url is required"},
		{"kafka feed needs brokers", minimal + "  source: kafka\n", "feed.source kafka requires"},
		{"queue needs redis", minimal + "queue:\n  enabled: true\n", "queue requires redis"},
		{"queue needs clickhouse", minimal + "redis:\n  enabled: true\nqueue:\n  enabled: true\n", "queue requires clickhouse"},
		{"collector needs queue", minimal + "collector:\n  enabled: true\n", "collector requires queue"},
		{"bad zone", "environment: test\nengine: {zone: Mars/Olympus}\nfeed: {url: x}\n", "engine.zone"},
		{"bad cutoff", "environment: test\nengine: {zone: UTC, cutoff: '25:99'}\nfeed: {url: x}\n", "engine.cutoff"},
		{"bad holiday", "environment: test\nengine: {zone: UTC, holidays: ['05/06/2024']}\nfeed: {url: x}\n", "engine.holidays"},
		{"bad environment", "environment: moon\nengine: {zone: UTC}\nfeed: {url: x}\n", "Environment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)

	env := map[string]string{
		"FEED_URL":           "http://other/feed",
		"KAFKA_BROKERS":      "k1:9092,k2:9092",
		"REDIS_ADDR":         "redis:6379",
		"ENGINE_DISPLAY_CAP": "7",
		"ENVIRONMENT":        "production",
	}
	c.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "http://other/feed", c.Feed.URL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, 7, c.Engine.DisplayCap)
	assert.False(t, c.StrictContract())
	require.NoError(t, c.Validate())

	c.applyEnv(func(k string) string {
		if k == "ENGINE_STRICT_CONTRACT" {
			return "true"
		}
		return ""
	})
	assert.True(t, c.StrictContract())
	assert.Equal(t, 7, c.Engine.DisplayCap)
}

func TestLoadWithEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))
	t.Setenv("FEED_SOURCE", "none")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "none", c.Feed.Source)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestHelpers(t *testing.T) {
	d, err := ParseCutoff("15:30")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Hour+30*time.Minute, d)

	c := &Config{Engine: EngineConfig{Holidays: []string{"2024-05-06", " 2024-12-25 "}}}
	set, err := c.HolidayDates()
	require.NoError(t, err)
	assert.Contains(t, set, "2024-12-25")
	assert.Len(t, set, 2)
}
