package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("TVA_RATE", "")
	cfg := Load()
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("expected sqlite driver, got %q", cfg.Database.Driver)
	}
	if cfg.Shop.TVARate != 0.20 {
		t.Fatalf("expected default rate 0.20, got %v", cfg.Shop.TVARate)
	}
	if cfg.SMS.Enabled() {
		t.Fatalf("sms must be disabled without credentials")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TVA_RATE", "0,055")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_SEED", "yes")
	t.Setenv("PORT", "9090")
	cfg := Load()
	if got := cfg.Shop.TaxRate().String(); got != "0.055" {
		t.Errorf("TaxRate() = %s, want 0.055", got)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
	if !cfg.Database.Seed {
		t.Errorf("expected seed enabled")
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
}

func TestSMSEnabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  SMSConfig
		want bool
	}{
		{"empty", SMSConfig{}, false},
		{"missing from", SMSConfig{AccountSID: "AC1", AuthToken: "tok"}, false},
		{"complete", SMSConfig{AccountSID: "AC1", AuthToken: "tok", From: "+33100000000"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}
