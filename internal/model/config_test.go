package model

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Queue.IntervalSec)
	assert.Equal(t, 20, cfg.Queue.BatchSize)
	assert.Equal(t, DefaultMaxRetries, cfg.Queue.MaxRetries)
	assert.Equal(t, "INBOX", cfg.Intake.Mailbox)
	assert.False(t, cfg.Intake.Enabled)
}

func TestSaveAndLoadConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	saved := &AppConfig{
		DBPath: "/tmp/helpdesk.db",
		Queue: QueueConfig{
			IntervalSec:    10,
			BatchSize:      5,
			MaxRetries:     4,
			SendTimeoutSec: 15,
		},
		Mail: MailConfig{From: "soporte@acme.test", ReplyTo: "noreply@acme.test"},
		Intake: IntakeConfig{
			Enabled:         true,
			Host:            "imap.acme.test",
			Port:            "993",
			Username:        "soporte@acme.test",
			TLS:             true,
			Mailbox:         "INBOX",
			PollIntervalSec: 60,
		},
	}
	require.NoError(t, SaveConfig(path, saved))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}
