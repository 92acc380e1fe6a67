package logger

import "testing"

func TestSanitizeRedactsSecretKeys(t *testing.T) {
	l := &Logger{redact: true}
	got := l.sanitize([]interface{}{"api_key", "sk-123", "keyword", "best shoes", "dangling"})
	if len(got) != 5 {
		t.Fatalf("len: want=5 got=%d", len(got))
	}
	if got[1] != "[REDACTED]" {
		t.Fatalf("api_key should be redacted, got %v", got[1])
	}
	if got[3] != "best shoes" {
		t.Fatalf("keyword should pass through, got %v", got[3])
	}
	if got[4] != "dangling" {
		t.Fatalf("odd trailing value should be kept, got %v", got[4])
	}
}

func TestSanitizeDisabled(t *testing.T) {
	l := &Logger{redact: false}
	got := l.sanitize([]interface{}{"password", "hunter2"})
	if got[1] != "hunter2" {
		t.Fatalf("redaction disabled should keep value, got %v", got[1])
	}
}
