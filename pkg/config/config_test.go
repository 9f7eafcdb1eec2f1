package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := new(AppConfig)
	cfg.ApplyDefaults()

	assert.Equal(t, int64(20), cfg.Engagement.HotThreshold)
	assert.Equal(t, 24*time.Hour, cfg.Engagement.MarkTTL())
	assert.Equal(t, int64(2), cfg.Engagement.HotCommentMinScore)
	assert.Equal(t, 3, cfg.Engagement.HotCommentLimit)
	assert.Equal(t, time.Minute, cfg.Idempotency.PostTTL())
	assert.Equal(t, time.Minute, cfg.Idempotency.CommentTTL())
	assert.Equal(t, time.Minute, cfg.Idempotency.QuestionTTL())
	assert.Equal(t, 5*time.Minute, cfg.Idempotency.SignupTTL())
	assert.Equal(t, "0 0 * * MON", cfg.Ranking.Cron)
	assert.Equal(t, "Asia/Seoul", cfg.Ranking.Timezone)
	assert.Equal(t, 5, cfg.Ranking.Size)
	assert.Equal(t, 100, cfg.Cleanup.BatchSize)
	assert.False(t, cfg.Cleanup.Enabled)
}

func TestInitConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  address: ":9000"
database:
  redis:
    addr: "localhost:6379"
engagement:
  hot_threshold: 30
ranking:
  size: 3
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := InitConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, "localhost:6379", cfg.Database.Redis.Addr)
	assert.Equal(t, int64(30), cfg.Engagement.HotThreshold)
	assert.Equal(t, 3, cfg.Ranking.Size)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// 未配置的字段走默认值
	assert.Equal(t, 24, cfg.Engagement.MarkTTLHours)
}

func TestInitConfig_MissingFile(t *testing.T) {
	_, err := InitConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestInitConfig_RejectsInvalidThresholds(t *testing.T) {
	cases := map[string]string{
		"explicit zero min score": "engagement:\n  hot_comment_min_score: 0\n",
		"negative min score":      "engagement:\n  hot_comment_min_score: -1\n",
		"zero comment limit":      "engagement:\n  hot_comment_limit: 0\n",
		"zero hot threshold":      "engagement:\n  hot_threshold: 0\n",
		"ranking above five":      "ranking:\n  size: 6\n",
		"ranking zero":            "ranking:\n  size: 0\n",
		"negative lock window":    "idempotency:\n  signup_ttl_seconds: -5\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, err := InitConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := new(AppConfig)
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	cfg.Ranking.Size = MaxRankingSize + 1
	assert.Error(t, cfg.Validate())

	cfg.Ranking.Size = 1
	cfg.Engagement.HotCommentMinScore = 1
	assert.NoError(t, cfg.Validate(), "a lower positive threshold is kept as configured")
}
