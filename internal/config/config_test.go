package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestStore_TypedReads(t *testing.T) {
	v := viper.New()
	v.Set("url", "https://example.com/healthz")
	v.Set("interval", "30s")
	v.Set("threshold", 3)
	v.Set("enabled", true)

	s := New(v)

	if got := s.GetString("url"); got != "https://example.com/healthz" {
		t.Errorf("GetString(url) = %q", got)
	}
	if got := s.GetDuration("interval"); got != 30*time.Second {
		t.Errorf("GetDuration(interval) = %v", got)
	}
	if got := s.GetInt("threshold"); got != 3 {
		t.Errorf("GetInt(threshold) = %d", got)
	}
	if !s.GetBool("enabled") {
		t.Error("GetBool(enabled) = false")
	}
	if !s.IsSet("url") || s.IsSet("missing") {
		t.Error("IsSet misreports keys")
	}
}

func TestStore_Unmarshal(t *testing.T) {
	v := viper.New()
	v.Set("url", "https://example.com")
	v.Set("threshold", 5)

	var got struct {
		URL       string `mapstructure:"url"`
		Threshold int    `mapstructure:"threshold"`
	}
	if err := New(v).Unmarshal(&got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.URL != "https://example.com" || got.Threshold != 5 {
		t.Errorf("Unmarshal = %+v", got)
	}
}

func TestStore_SubMissingKeyIsUsable(t *testing.T) {
	sub := New(viper.New()).Sub("plugins.notify")
	if sub == nil {
		t.Fatal("Sub returned nil")
	}
	if sub.IsSet("webhook.url") {
		t.Error("empty subtree reports keys as set")
	}
	if got := sub.GetString("webhook.url"); got != "" {
		t.Errorf("GetString on empty subtree = %q", got)
	}
}

func TestNew_NilViper(t *testing.T) {
	if got := New(nil).GetString("anything"); got != "" {
		t.Errorf("nil-backed store returned %q, want zero value", got)
	}
}
