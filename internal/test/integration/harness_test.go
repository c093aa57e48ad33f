//go:build integration
// +build integration

package integration

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/appeal"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/domain/issuer"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/observability/audit"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/service"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage/integrity"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage/sqlite"
)

var suiteStart = time.Date(2026, 4, 6, 12, 0, 0, 0, time.UTC)

// integrationSuite wires a full engine stack on temp databases: journal with
// the projection-apply outbox enabled, projections database, and a service
// with a real decision grant keypair.
type integrationSuite struct {
	svc       *service.Service
	journal   *sqlite.Store
	readModel *sqlite.Store
	grantKey  ed25519.PrivateKey
	now       *time.Time
	clock     func() time.Time
}

func newIntegrationSuite(t *testing.T) *integrationSuite {
	t.Helper()

	keyring, err := integrity.NewKeyring(map[string][]byte{
		"suite-key-1": []byte("fedcba9876543210fedcba9876543210"),
	}, "suite-key-1")
	if err != nil {
		t.Fatalf("build keyring: %v", err)
	}

	dir := t.TempDir()
	journal, err := sqlite.OpenJournal(filepath.Join(dir, "events.db"), keyring, event.DefaultRegistry(),
		sqlite.WithProjectionApplyOutboxEnabled(true))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() {
		if err := journal.Close(); err != nil {
			t.Fatalf("close journal: %v", err)
		}
	})

	readModel, err := sqlite.OpenProjections(filepath.Join(dir, "projections.db"))
	if err != nil {
		t.Fatalf("open projections: %v", err)
	}
	t.Cleanup(func() {
		if err := readModel.Close(); err != nil {
			t.Fatalf("close projections: %v", err)
		}
	})

	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate grant keypair: %v", err)
	}

	now := suiteStart
	clock := func() time.Time { return now }
	svc, err := service.New(service.Config{
		Journal: journal,
		Directory: issuer.StaticDirectory{
			"mod-1":           {ID: "mod-1", Role: issuer.RoleModerator, Active: true},
			"senior-1":        {ID: "senior-1", Role: issuer.RoleSeniorModerator, Active: true},
			"admin-1":         {ID: "admin-1", Role: issuer.RoleAdmin, Active: true},
			"system":          {ID: "system", Role: issuer.RoleSystem, Active: true},
			"appeals-service": {ID: "appeals-service", Role: issuer.RoleAppealsService, Active: true},
		},
		Grants: appeal.DecisionGrantConfig{
			Issuer:   "modl-panel-appeals",
			Audience: "moderation-engine",
			Key:      publicKey,
			Now:      clock,
		},
		Audit: audit.NewEmitter(readModel),
		Clock: clock,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	return &integrationSuite{
		svc:       svc,
		journal:   journal,
		readModel: readModel,
		grantKey:  privateKey,
		now:       &now,
		clock:     clock,
	}
}

func (s *integrationSuite) advance(d time.Duration) {
	*s.now = s.now.Add(d)
}

func repoRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("get working dir: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
			return wd
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			t.Fatal("go.mod not found")
		}
		wd = parent
	}
}
