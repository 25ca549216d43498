package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"toechat/internal/api"
	"toechat/internal/config"
	"toechat/internal/services"
	"toechat/pkg/chattypes"
)

// engine bundles the wired client services for a command invocation. State is
// owned here and passed explicitly; there are no package-level stores.
type engine struct {
	cfg      *config.Config
	registry *services.Registry
	quota    *services.QuotaService
	store    *services.SessionService
	pipeline *services.SendService
	markdown *services.MarkdownService
}

// newEngine loads configuration and wires the service registry.
func newEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	backend := api.NewClient(api.Config{
		BaseURL: cfg.BaseURL,
		Token:   cfg.APIToken,
		Timeout: cfg.RequestTimeout,
	})

	quota := services.NewQuotaService(backend, cfg.Premium)
	store := services.NewSessionService(backend, testMode)
	pipeline := services.NewSendService(backend, store, quota, testMode)
	markdown := services.NewMarkdownService()

	registry := services.NewRegistry()
	for _, service := range []chattypes.Service{quota, store, pipeline, markdown} {
		if err := registry.RegisterService(service); err != nil {
			return nil, err
		}
	}
	if err := registry.InitializeAll(); err != nil {
		return nil, err
	}

	return &engine{
		cfg:      cfg,
		registry: registry,
		quota:    quota,
		store:    store,
		pipeline: pipeline,
		markdown: markdown,
	}, nil
}

// resolveCategory picks the category flag, falling back to the configured
// default.
func (e *engine) resolveCategory() (chattypes.Category, error) {
	if category == "" {
		return e.cfg.DefaultCategory, nil
	}
	c := chattypes.Category(category)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q (expected normal or interview)", category)
	}
	return c, nil
}

// readFileUploads loads attachment files from disk, inferring MIME types from
// extensions.
func readFileUploads(paths []string) ([]chattypes.FileUpload, error) {
	uploads := make([]chattypes.FileUpload, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read attachment %s: %w", path, err)
		}

		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		uploads = append(uploads, chattypes.FileUpload{
			Name:     filepath.Base(path),
			MimeType: mimeType,
			Data:     data,
		})
	}
	return uploads, nil
}
