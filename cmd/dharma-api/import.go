package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/MarcoPoloResearchLab/dharma/backend/internal/config"
	"github.com/MarcoPoloResearchLab/dharma/backend/internal/content"
	"github.com/MarcoPoloResearchLab/dharma/backend/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newImportCommand() *cobra.Command {
	var sourcePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the stored document with the contents of a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			store, closeStore, err := openDocumentStore(appConfig, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			document, err := importDocument(cmd.Context(), store, sourcePath, logger)
			if err != nil {
				return err
			}
			cmd.Printf("imported %d links and %d progress entries\n", len(document.Links), len(document.Progress))
			return nil
		},
	}
	cmd.Flags().StringVar(&sourcePath, "from", "", "Path to a {links, progress} JSON document")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

// importDocument decodes the source file strictly and writes it through the
// content service so the stored copy is normalized.
func importDocument(ctx context.Context, store content.DocumentStore, sourcePath string, logger *zap.Logger) (content.Document, error) {
	raw, err := os.ReadFile(sourcePath)
	if err != nil {
		return content.Document{}, fmt.Errorf("read import source: %w", err)
	}
	var document content.Document
	if err := json.Unmarshal(raw, &document); err != nil {
		return content.Document{}, fmt.Errorf("decode import source: %w", err)
	}
	document.Normalize()

	service, err := content.NewService(content.ServiceConfig{
		Store:      store,
		Clock:      time.Now,
		IDProvider: content.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return content.Document{}, err
	}
	defer service.Close()

	if err := service.ReplaceDocument(ctx, document); err != nil {
		return content.Document{}, err
	}
	logger.Info("content document imported",
		zap.String("source", sourcePath),
		zap.Int("links", len(document.Links)),
		zap.Int("progress", len(document.Progress)))
	return document, nil
}
