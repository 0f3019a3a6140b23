package config

import "testing"

func validConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidateDefaultsOK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("err: %v", err)
	}
}

func TestValidateMissing(t *testing.T) {
	cfg := Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateMissingAddr(t *testing.T) {
	cfg := Config{}
	cfg.Storage.PostgresDSN = "dsn"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for missing listen address")
	}
}

func TestValidateThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Search.Threshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateDimensionMatchesColumn(t *testing.T) {
	for _, dim := range []int{-1, 768, 1536} {
		cfg := validConfig()
		cfg.Inference.Dimension = dim
		if err := cfg.Validate(); err == nil {
			t.Fatalf("dimension %d: expected error", dim)
		}
	}
	cfg := validConfig()
	cfg.Inference.Dimension = DefaultDimension
	if err := cfg.Validate(); err != nil {
		t.Fatalf("err: %v", err)
	}
}

func TestValidateNegativeRate(t *testing.T) {
	cfg := validConfig()
	cfg.Server.RateLimitRPS = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateInferenceKeyWithoutBase(t *testing.T) {
	cfg := validConfig()
	cfg.Inference.APIKey = "key"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error")
	}
	cfg.Inference.APIBase = "https://inference.example"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("err: %v", err)
	}
}

func TestValidateBotTokenNeedsSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Slack.BotToken = "xoxb"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error")
	}
	cfg.Slack.SigningSecret = "shh"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("err: %v", err)
	}
}

func TestValidateRefresh(t *testing.T) {
	cfg := validConfig()
	cfg.Refresh.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatalf("refresh without bot token should fail")
	}
	cfg.Slack.BotToken = "xoxb"
	cfg.Slack.SigningSecret = "shh"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("err: %v", err)
	}
	cfg.Refresh.Cron = "every day"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected cron error")
	}
}

func TestApplyDefaultsRateBurst(t *testing.T) {
	cfg := Config{}
	cfg.Server.RateLimitRPS = 5
	cfg.ApplyDefaults()
	if cfg.Server.RateLimitBurst != 11 {
		t.Fatalf("burst: %d", cfg.Server.RateLimitBurst)
	}
}

func TestServerAddr(t *testing.T) {
	if got := (ServerConfig{HTTPAddr: "127.0.0.1:80", Port: "90"}).Addr(); got != "127.0.0.1:80" {
		t.Fatalf("addr: %s", got)
	}
	if got := (ServerConfig{Port: "90"}).Addr(); got != ":90" {
		t.Fatalf("addr: %s", got)
	}
}
