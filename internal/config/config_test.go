package config

import (
	"strings"
	"testing"
	"time"

	"github.com/mamadbah2/stationledger/internal/domain/models"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_PORT", "LOG_LEVEL", "STORE_BACKEND", "MONGODB_URI", "MONGODB_DB_NAME", "MONGODB_COLLECTION",
		"SQLITE_PATH", "GOOGLE_SHEETS_CREDENTIALS_PATH", "GOOGLE_SHEET_DATABASE_ID", "GOOGLE_SHEET_LEDGER_TAB",
		"REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB", "CACHE_TTL", "REPORT_CRON_SCHEDULE", "TIMEZONE",
		"REPORT_RECIPIENT_ID", "REPORT_LOCALE", "WHATSAPP_TOKEN", "WHATSAPP_PHONE_NUMBER_ID", "META_VERIFY_TOKEN",
		"WHATSAPP_BASE_URL", "WHATSAPP_API_VERSION", "MATERIAL_TYPES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("testdata/does-not-exist.env")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Store.Backend != BackendMongoDB {
		t.Errorf("Expected mongodb backend, got %s", cfg.Store.Backend)
	}
	if cfg.Redis.Enabled() || cfg.WhatsApp.Enabled() {
		t.Errorf("Expected optional integrations to be disabled")
	}
	if cfg.Redis.CacheTTL != 10*time.Minute {
		t.Errorf("Expected 10m cache ttl, got %s", cfg.Redis.CacheTTL)
	}
	if cfg.Reporting.CronSchedule != "0 20 * * 5" {
		t.Errorf("Expected weekly Friday schedule, got %s", cfg.Reporting.CronSchedule)
	}
	if got := len(cfg.Ledger.Materials()); got != 4 {
		t.Errorf("Expected 4 materials, got %d", got)
	}
}

func TestLoad_ExtraMaterials(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "MEMORY")
	t.Setenv("MATERIAL_TYPES", "beanSprout, tofu , ,driedFish")

	cfg, err := Load("testdata/does-not-exist.env")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	materials := cfg.Ledger.Materials()
	expected := append(models.DefaultMaterials(), "beanSprout", "driedFish")
	if len(materials) != len(expected) {
		t.Fatalf("Expected %d materials, got %v", len(expected), materials)
	}
	for i := range expected {
		if materials[i] != expected[i] {
			t.Errorf("material %d: expected %s, got %s", i, expected[i], materials[i])
		}
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	testCases := []struct {
		name   string
		env    map[string]string
		errMsg string
	}{
		{"unknown backend", map[string]string{"STORE_BACKEND": "postgres"}, "STORE_BACKEND"},
		{"sheets without credentials", map[string]string{"STORE_BACKEND": "sheets"}, "GOOGLE_SHEETS_CREDENTIALS_PATH"},
		{"whatsapp without phone id", map[string]string{"WHATSAPP_TOKEN": "secret"}, "WHATSAPP_PHONE_NUMBER_ID"},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}, "TIMEZONE"},
		{"bad redis db", map[string]string{"REDIS_DB": "one"}, "REDIS_DB"},
		{"bad cache ttl", map[string]string{"CACHE_TTL": "soon"}, "CACHE_TTL"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := Load("testdata/does-not-exist.env")
			if err == nil {
				t.Fatalf("Expected error mentioning %s", tc.errMsg)
			}
			if !strings.Contains(err.Error(), tc.errMsg) {
				t.Errorf("Expected error mentioning %s, got %v", tc.errMsg, err)
			}
		})
	}
}
