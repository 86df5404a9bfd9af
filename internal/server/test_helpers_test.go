package server

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/dharma/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/dharma/backend/internal/content"
	"go.uber.org/zap"
)

const testAdminPassword = "open-sesame"

func newTestGate(testContext *testing.T, clock func() time.Time) *auth.AdminGate {
	testContext.Helper()
	gate, err := auth.NewAdminGate(auth.AdminGateConfig{
		Password:      testAdminPassword,
		SigningSecret: []byte("router-secret"),
		Clock:         clock,
	})
	if err != nil {
		testContext.Fatalf("failed to construct admin gate: %v", err)
	}
	return gate
}

func newTestContentService(testContext *testing.T) *content.Service {
	testContext.Helper()
	store, err := content.NewFileStore(content.FileStoreConfig{
		Path:   filepath.Join(testContext.TempDir(), "content.json"),
		Logger: zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to construct file store: %v", err)
	}
	service, err := content.NewService(content.ServiceConfig{
		Store:      store,
		IDProvider: content.NewUUIDProvider(),
		Logger:     zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to construct content service: %v", err)
	}
	testContext.Cleanup(service.Close)
	return service
}
