// Package balance serves read-only account balance views: current balance,
// available credit limit and how much of today's transfer limit remains.
package balance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/gmelo/transferapi/internal/logger"
	"github.com/gmelo/transferapi/internal/models"
	"github.com/gmelo/transferapi/internal/money"
	"github.com/gmelo/transferapi/internal/repository"
)

const (
	defaultCacheTTL = 10 * time.Second

	// fallbackHolderName stands in when the registry cannot be reached;
	// balance reads never fail on a registry outage
	fallbackHolderName = "Cliente"
)

type registryClient interface {
	FindClientByID(ctx context.Context, clientID uuid.UUID) (models.Client, error)
}

type Balance struct {
	AccountID       uuid.UUID
	Number          string
	Agency          string
	HolderName      string
	Status          models.AccountStatus
	Balance         money.Money
	AvailableLimit  money.Money
	DailyLimitTotal money.Money
	DailyLimitUsed  money.Money
	DailyLimitLeft  money.Money
	AsOf            time.Time
}

type Service struct {
	storage  repository.Storage
	registry registryClient
	cache    *gocache.Cache
	logger   logger.Logger
}

func NewService(storage repository.Storage, registry registryClient, cacheTTL time.Duration, l logger.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}

	return &Service{
		storage:  storage,
		registry: registry,
		cache:    gocache.New(cacheTTL, 2*cacheTTL),
		logger:   l,
	}
}

// GetBalance assembles the balance view for one account. Results are cached
// briefly: the view is advisory, the transfer pipeline always reads fresh
// locked rows.
func (s *Service) GetBalance(ctx context.Context, number string, agency string) (Balance, error) {
	key := number + "/" + agency
	if cached, ok := s.cache.Get(key); ok {
		return cached.(Balance), nil
	}

	account, err := s.storage.Account().FindByNumberAndAgency(ctx, number, agency)
	if err != nil {
		return Balance{}, err
	}

	dailyLimit, err := s.storage.DailyLimit().Find(ctx, account.ID, models.DateOf(time.Now()))
	if errors.Is(err, repository.ErrDailyLimitNotFound) {
		dailyLimit = models.NewDailyTransferLimit(account.ID)
	} else if err != nil {
		return Balance{}, err
	}

	b := Balance{
		AccountID:       account.ID,
		Number:          account.Number,
		Agency:          account.Agency,
		HolderName:      s.holderName(ctx, account),
		Status:          account.Status,
		Balance:         account.Balance,
		AvailableLimit:  account.AvailableLimit,
		DailyLimitTotal: dailyLimit.DailyLimit,
		DailyLimitUsed:  dailyLimit.UsedAmount,
		DailyLimitLeft:  dailyLimit.AvailableLimit(),
		AsOf:            time.Now().UTC(),
	}

	s.cache.Set(key, b, gocache.DefaultExpiration)
	return b, nil
}

func (s *Service) holderName(ctx context.Context, account models.Account) string {
	client, err := s.registry.FindClientByID(ctx, account.ClientID)
	if err != nil {
		s.logger.Warn("Falling back to generic holder name",
			"account", account.Number,
			"error", err,
		)
		return fallbackHolderName
	}
	return client.Name
}
