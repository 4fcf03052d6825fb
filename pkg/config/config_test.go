package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 80, cfg.Scoring.PremiumMin)
	assert.Equal(t, 60, cfg.Scoring.VerifiedMin)
	assert.Equal(t, 85, cfg.Scoring.AutoApproveMin)
	assert.True(t, cfg.Admission.BlockInvalid)
	assert.False(t, cfg.Admission.AutoApprove)
	assert.Equal(t, 5*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, 587, cfg.Notifications.SMTPPort)
	assert.Equal(t, []string{"authenticated"}, cfg.JWT.Audience)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ADMISSION_AUTO_APPROVE", "true")
	t.Setenv("SCORING_AUTO_APPROVE_MIN", "90")
	t.Setenv("NOTIFY_RETRY_INTERVAL", "not-a-duration")

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	cfg := fromViper(v)

	assert.True(t, cfg.Admission.AutoApprove)
	assert.Equal(t, 90, cfg.Scoring.AutoApproveMin)
	assert.Equal(t, 5*time.Minute, cfg.Notifications.RetryInterval)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a, ,b "))
}
