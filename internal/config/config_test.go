package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testYAML = `
server:
  port: 8081
database:
  driver: sqlite
sqlite:
  dsn: "file:test.db"
business:
  indirect_floor_rank: Manager
ranks:
  - title: Consultant
    required_points: 0
  - title: Manager
    required_points: 1000
  - title: Diamond
    required_points: 10000
  - title: Sapphire Diamond
    required_points: 30000
    required_lines: 3
    line_rank: Diamond
packages:
  - name: Starter
    amount: "5000"
    direct_commission: "500"
    indirect_commission: "200"
    points: 50
    validity_days: 365
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Port != 8081 {
		t.Errorf("port = %d, want 8081", cfg.Server.Port)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("driver = %s", cfg.Database.Driver)
	}
	if len(cfg.Ranks) != 4 || cfg.Ranks[3].RequiredLines != 3 || cfg.Ranks[3].LineRank != "Diamond" {
		t.Errorf("ranks = %+v", cfg.Ranks)
	}
	if len(cfg.Packages) != 1 || cfg.Packages[0].IndirectCommission != "200" {
		t.Errorf("packages = %+v", cfg.Packages)
	}

	// 未配置的项取默认值
	if cfg.Business.MaxChainDepth != 20 || cfg.Business.ApprovalTimeoutSeconds != 90 {
		t.Errorf("business defaults not applied: %+v", cfg.Business)
	}
	if cfg.Kafka.Topic.RankEvents != "mlm.rank" {
		t.Errorf("rank topic = %s", cfg.Kafka.Topic.RankEvents)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("MLM_SERVER_PORT", "9090")
	t.Setenv("MLM_BUSINESS_MAX_CHAIN_DEPTH", "5")

	cfg, err := LoadConfig(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Business.MaxChainDepth != 5 {
		t.Errorf("max chain depth = %d, want 5", cfg.Business.MaxChainDepth)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown driver",
			yaml:    strings.Replace(testYAML, "driver: sqlite", "driver: oracle", 1),
			wantErr: "oracle",
		},
		{
			name:    "unknown line rank",
			yaml:    strings.Replace(testYAML, "line_rank: Diamond", "line_rank: Emerald", 1),
			wantErr: "Emerald",
		},
		{
			name:    "unknown floor rank",
			yaml:    strings.Replace(testYAML, "indirect_floor_rank: Manager", "indirect_floor_rank: Director", 1),
			wantErr: "Director",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
