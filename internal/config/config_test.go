package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[kafkaConfig]
brokers = ["kafka-1:9092", "kafka-2:9092"]

[kafkaConfig.topics]
daily = "market.daily"
processed-daily = "market.daily.processed"

[processorConfig]
checkIntervalSeconds = 10
`)
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Brokers) != 2 || c.Brokers[0] != "kafka-1:9092" {
		t.Fatalf("unexpected brokers %v", c.Brokers)
	}
	if c.Topics["daily"] != "market.daily" || c.Topics["processed-daily"] != "market.daily.processed" {
		t.Fatalf("configured topics lost: %v", c.Topics)
	}
	if c.Topics["options"] != "options" || c.Topics["processed-historical"] != "processed-historical" {
		t.Fatalf("missing topic defaults: %v", c.Topics)
	}
	if c.CheckInterval() != 10*time.Second {
		t.Fatalf("expected 10s interval, got %s", c.CheckInterval())
	}
	if c.MetadataRetries != 3 || c.MetadataRetryDelay() != 5*time.Second || c.MetadataTimeout() != 10*time.Second {
		t.Fatalf("unexpected metadata defaults %+v", c.ProcessorConfig)
	}
	if c.PollTimeout() != time.Second || c.JoinTimeout() != 5*time.Second || c.StreamInterval() != 5*time.Second {
		t.Fatalf("unexpected worker defaults %+v", c.ProcessorConfig)
	}
	if c.Port != 8000 || c.MetricsConfig.Path != "/metrics" {
		t.Fatalf("unexpected main defaults %+v %+v", c.MainConfig, c.MetricsConfig)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	path := writeConfig(t, `
[mainConfig]
port = 9100
`)
	t.Setenv(EnvPath, path)
	c, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Port != 9100 {
		t.Fatalf("expected port from env config, got %d", c.Port)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `
[mainConfig]
port = 70000

[kafkaConfig]
brokers = [" "]
initialOffset = "middle"
requiredAcks = "none"
`)
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"port", "brokers[0]", "initialOffset", "requiredAcks"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestShippedConfigIsValid(t *testing.T) {
	c, err := LoadConfig(filepath.Join("..", "..", DefaultPath))
	if err != nil {
		t.Fatalf("shipped config: %v", err)
	}
	if len(c.Topics) != 8 {
		t.Fatalf("expected 8 topics, got %d", len(c.Topics))
	}
}

func TestSetConfig(t *testing.T) {
	c := (&Config{}).WithDefaults()
	c.AppName = "test"
	SetConfig(c)
	t.Cleanup(func() { SetConfig(nil) })
	if GetConfig().AppName != "test" {
		t.Fatal("GetConfig did not return the config set")
	}
}
