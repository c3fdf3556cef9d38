// Package registry talks to the external client-registry service
// ("cadastro") that owns account-holder data.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/gmelo/transferapi/internal/apperrors"
	"github.com/gmelo/transferapi/internal/logger"
	"github.com/gmelo/transferapi/internal/models"
	"github.com/gmelo/transferapi/internal/resilience"
)

const (
	defaultRequestTimeout = 5 * time.Second
	defaultCacheTTL       = 5 * time.Minute
)

type clientResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	DocumentNumber string    `json:"documentNumber"`
	Active         bool      `json:"active"`
}

type Client struct {
	BaseURL string

	http   *http.Client
	exec   *resilience.Executor
	cache  *gocache.Cache
	logger logger.Logger
}

// NewClient builds a registry client with a read-through cache in front of
// the resilience-wrapped HTTP call. Registry outages never retry business
// errors: only integration failures are retried.
func NewClient(baseURL string, cacheTTL time.Duration, l logger.Logger) *Client {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}

	cfg := resilience.DefaultConfig("registry")
	cfg.Retryable = func(err error) bool {
		return apperrors.IsKind(err, apperrors.KindIntegration)
	}

	return &Client{
		BaseURL: baseURL,
		http:    &http.Client{Timeout: defaultRequestTimeout},
		exec:    resilience.NewExecutor(cfg),
		cache:   gocache.New(cacheTTL, 2*cacheTTL),
		logger:  l,
	}
}

// FindClientByID resolves a client, serving repeats from cache.
// Absent clients return ClientNotFound; outages and open breakers return an
// integration error the caller may choose to absorb.
func (c *Client) FindClientByID(ctx context.Context, clientID uuid.UUID) (models.Client, error) {
	key := clientID.String()
	if cached, ok := c.cache.Get(key); ok {
		return cached.(models.Client), nil
	}

	var client models.Client
	err := c.exec.Do(ctx, func(ctx context.Context) error {
		var err error
		client, err = c.fetchClient(ctx, clientID)
		return err
	})

	switch {
	case err == nil:
		c.cache.Set(key, client, gocache.DefaultExpiration)
		return client, nil
	case errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, resilience.ErrBulkheadFull):
		return client, apperrors.RegistryUnavailable(err)
	default:
		return client, err
	}
}

func (c *Client) fetchClient(ctx context.Context, clientID uuid.UUID) (models.Client, error) {
	var client models.Client

	url := c.BaseURL + "/api/v1/clients/" + clientID.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return client, apperrors.RegistryError(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return client, apperrors.RegistryUnavailable(err)
	}
	defer resp.Body.Close() // nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
		var body clientResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			c.logger.Warn("Failed to decode registry response", "error", err)
			return client, apperrors.RegistryError(err)
		}

		return models.Client{
			ID:       body.ID,
			Name:     body.Name,
			Document: body.DocumentNumber,
			Active:   body.Active,
		}, nil

	case resp.StatusCode == http.StatusNotFound:
		return client, apperrors.ClientNotFound(clientID.String())

	case resp.StatusCode >= 500:
		c.logger.Warn("Registry service error", "status_code", resp.StatusCode, "client_id", clientID)
		return client, apperrors.RegistryUnavailable(fmt.Errorf("registry returned status %d", resp.StatusCode))

	default:
		return client, apperrors.RegistryError(fmt.Errorf("unexpected status %d from registry", resp.StatusCode))
	}
}
