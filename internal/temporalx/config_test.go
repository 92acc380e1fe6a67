package temporalx

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TEMPORAL_ADDRESS", "  ")
	t.Setenv("WORKER_CONCURRENCY", "0")
	t.Setenv("TEMPORAL_CLIENT_CERT_PATH", "/tmp/cert.pem")
	cfg := LoadConfig()
	if cfg.Enabled() {
		t.Fatalf("blank address should disable temporal")
	}
	if cfg.Namespace != "seoflow" || cfg.TaskQueue != "seoflow-jobs" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.WorkerConcurrency != 1 {
		t.Fatalf("concurrency = %d", cfg.WorkerConcurrency)
	}
	if cfg.TLS() {
		t.Fatalf("cert without key is not a tls pair")
	}
}
