package util

import (
	"testing"
	"time"
)

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("TASKLIST_TEST_VALUE", "  ")
	if got := EnvOrDefault("TASKLIST_TEST_VALUE", "fallback"); got != "fallback" {
		t.Errorf("blank value: got %q, want fallback", got)
	}
	t.Setenv("TASKLIST_TEST_VALUE", "set")
	if got := EnvOrDefault("TASKLIST_TEST_VALUE", "fallback"); got != "set" {
		t.Errorf("got %q, want set", got)
	}
}

func TestEnvDuration(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", time.Hour, false},
		{"30m", 30 * time.Minute, false},
		{"abc", time.Hour, true},
		{"-5m", time.Hour, true},
	}
	for _, tt := range tests {
		t.Setenv("TASKLIST_TEST_TTL", tt.raw)
		got, err := EnvDuration("TASKLIST_TEST_TTL", time.Hour)
		if (err != nil) != tt.wantErr {
			t.Errorf("EnvDuration(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("EnvDuration(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("TASKLIST_TEST_BOOL", "true")
	if v, err := EnvBool("TASKLIST_TEST_BOOL", false); err != nil || !v {
		t.Errorf("EnvBool(true) = %v, %v", v, err)
	}
	t.Setenv("TASKLIST_TEST_BOOL", "maybe")
	if _, err := EnvBool("TASKLIST_TEST_BOOL", false); err == nil {
		t.Error("expected error for invalid bool")
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("TASKLIST_TEST_INT", "8")
	if v, err := EnvInt("TASKLIST_TEST_INT", 4); err != nil || v != 8 {
		t.Errorf("EnvInt(8) = %d, %v", v, err)
	}
	for _, raw := range []string{"0", "eight"} {
		t.Setenv("TASKLIST_TEST_INT", raw)
		if _, err := EnvInt("TASKLIST_TEST_INT", 4); err == nil {
			t.Errorf("EnvInt(%q): expected error", raw)
		}
	}
}
