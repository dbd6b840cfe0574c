package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadIncludesPipelineDefaults(t *testing.T) {
	t.Setenv("NATS_PROCESS_SUBJECT", "")
	t.Setenv("NATS_GENERATE_SUBJECT", "")
	t.Setenv("MATCH_THRESHOLD", "")
	t.Setenv("OVERALL_WEIGHTING", "")

	cfg := Load()
	if cfg.NATSProcessSubject != "documents.process" {
		t.Fatalf("expected default process subject, got %q", cfg.NATSProcessSubject)
	}
	if cfg.NATSGenerateSubject != "responses.generate" {
		t.Fatalf("expected default generate subject, got %q", cfg.NATSGenerateSubject)
	}
	if cfg.MatchThreshold != 50 {
		t.Fatalf("expected default match threshold 50, got %v", cfg.MatchThreshold)
	}
	if cfg.OverallWeighting != "count" {
		t.Fatalf("expected default overall weighting count, got %q", cfg.OverallWeighting)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("MATCH_THRESHOLD", "65.5")
	t.Setenv("OVERALL_WEIGHTING", "category")
	t.Setenv("RATE_LIMIT_RPS", "5")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")

	cfg := Load()
	if cfg.MatchThreshold != 65.5 {
		t.Fatalf("expected match threshold 65.5, got %v", cfg.MatchThreshold)
	}
	if cfg.OverallWeighting != "category" {
		t.Fatalf("expected overall weighting category, got %q", cfg.OverallWeighting)
	}
	if cfg.RateLimitRPS != 5 {
		t.Fatalf("expected rate limit 5, got %v", cfg.RateLimitRPS)
	}
	if cfg.MaxUploadBytes != 1048576 {
		t.Fatalf("expected max upload 1048576, got %d", cfg.MaxUploadBytes)
	}
}

func TestLoadCompanyProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "company.yaml")
	content := "name: Acme Integrations\ntagline: We deliver\nemail: bids@acme.example\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	profile, err := LoadCompanyProfile(path)
	if err != nil {
		t.Fatalf("LoadCompanyProfile: %v", err)
	}
	if profile.Name != "Acme Integrations" || profile.Email != "bids@acme.example" {
		t.Fatalf("profile = %+v", profile)
	}
}

func TestLoadCompanyProfileRequiresName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "company.yaml")
	if err := os.WriteFile(path, []byte("tagline: nameless\n"), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	if _, err := LoadCompanyProfile(path); err == nil {
		t.Fatal("expected error for a profile without a name")
	}
}

func TestLoadCompanyProfileDefault(t *testing.T) {
	profile, err := LoadCompanyProfile("")
	if err != nil {
		t.Fatalf("LoadCompanyProfile: %v", err)
	}
	if profile.Name == "" {
		t.Fatal("default profile has no name")
	}
}
