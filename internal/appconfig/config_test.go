package appconfig

import (
	"testing"

	"pkt.systems/netbrowser/schema"
)

func TestDefaultConfigMatchesShellDefaults(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	svc, err := schema.NormalizeServiceConfig(cfg.ServiceConfig())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if svc.TitlePollInterval != schema.DefaultTitlePollInterval || svc.Homepage != schema.NewTabURL {
		t.Fatalf("unexpected service config: %+v", svc)
	}
	if cfg.Privacy.ContentBlocking || cfg.Privacy.DoNotTrack {
		t.Fatalf("expected privacy switches to default off")
	}
}
