package server

import (
	"errors"
	"fmt"

	"pricebot/internal/apiclient"
	"pricebot/internal/config"
	"pricebot/internal/database"
	"pricebot/internal/repository"
	"pricebot/internal/service"

	"go.uber.org/zap"
)

// ErrNoDatabase is returned when the postgres product source is selected
// without an open database
var ErrNoDatabase = errors.New("postgres product source requires a database")

// NewProductService picks the product source named by the chat config
func NewProductService(cfg *config.Config, logger *zap.Logger, db database.Service) (service.ProductService, error) {
	switch cfg.Chat.ProductSource {
	case config.ProductSourceAPI:
		client, err := apiclient.New(cfg.Backend.URL, BackendTokens(cfg.Backend), apiclient.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create backend client: %w", err)
		}
		logger.Info("Using backend product API", zap.String("url", cfg.Backend.URL))
		return service.NewRemoteProductService(client, logger), nil

	case config.ProductSourcePostgres:
		if db == nil {
			return nil, ErrNoDatabase
		}
		return service.NewProductService(repository.NewProductRepository(db.DB()), logger), nil
	}

	return nil, fmt.Errorf("unknown product source %q", cfg.Chat.ProductSource)
}

// BackendTokens returns the token store for the backend API. A credentials
// file wins over tokens given in the environment.
func BackendTokens(cfg config.BackendConfig) apiclient.TokenStore {
	if cfg.CredentialsPath != "" {
		return apiclient.NewFileTokenStore(cfg.CredentialsPath)
	}
	return apiclient.NewMemoryTokenStore(apiclient.Tokens{
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
	})
}
