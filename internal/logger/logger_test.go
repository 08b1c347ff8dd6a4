package logger

import "testing"

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"channel_id", "c1", "postgres_dsn", "postgres://u:p@db", "redis_password", "x", "dangling"})
	if len(out) != 7 {
		t.Fatalf("expected 7 items, got %d", len(out))
	}
	if out[1] != "c1" {
		t.Fatalf("expected plain value kept, got %v", out[1])
	}
	if out[3] != "[REDACTED]" || out[5] != "[REDACTED]" {
		t.Fatalf("expected secrets redacted, got %v", out)
	}
	if out[6] != "dangling" {
		t.Fatalf("expected dangling key preserved, got %v", out[6])
	}
}

func TestNopLoggerIsUsable(t *testing.T) {
	log := Nop().With("component", "test")
	log.Info("hello", "k", "v")
	log.Sync()
}
