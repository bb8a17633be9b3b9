package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/babylon-scanner/internal/errors"
	"github.com/babylon-scanner/internal/models"
	"github.com/babylon-scanner/internal/worker"
)

// Watchlist is the watched addresses with their current native balances
type Watchlist struct {
	Addresses    []*models.WatchedAddressBalance `json:"addresses"`
	TotalBalance decimal.Decimal                 `json:"totalBalance"`
	Degraded     bool                            `json:"degraded"`
}

// AddWatchedAddress starts watching address. A blank nickname is stored as none.
func (s *ExplorerService) AddWatchedAddress(ctx context.Context, address, nickname string) (*models.WatchedAddress, error) {
	if s.watchlist == nil {
		return nil, apperrors.NewInternalError("watchlist store is not configured", nil)
	}
	address = strings.TrimSpace(address)
	if err := s.params.ValidateAddress(address); err != nil {
		return nil, err
	}

	w := &models.WatchedAddress{Address: address, AlertsEnabled: false}
	if nickname = strings.TrimSpace(nickname); nickname != "" {
		w.Nickname = &nickname
	}

	created, err := s.watchlist.AddWatched(ctx, w)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("address", address).Info("address added to watchlist")
	return created, nil
}

// ListWatchedAddresses returns every watched address with its balance. Balance lookups run on
// the fan-out pool; a failed lookup reports a zero balance and marks the list degraded.
func (s *ExplorerService) ListWatchedAddresses(ctx context.Context) (*Watchlist, error) {
	if s.watchlist == nil {
		return &Watchlist{Addresses: []*models.WatchedAddressBalance{}, TotalBalance: decimal.Zero}, nil
	}

	watched, err := s.watchlist.ListWatched(ctx)
	if err != nil {
		return nil, err
	}

	outcomes := worker.Map(ctx, s.pool, watched, func(ctx context.Context, w *models.WatchedAddress) (decimal.Decimal, error) {
		balance, err := s.reader.GetAccountBalance(ctx, w.Address)
		if err != nil {
			return decimal.Zero, err
		}
		return s.params.WholeUnits(balance.AmountOf(s.params.NativeDenom)), nil
	})

	list := &Watchlist{
		Addresses:    make([]*models.WatchedAddressBalance, 0, len(watched)),
		TotalBalance: decimal.Zero,
	}
	for i, w := range watched {
		entry := &models.WatchedAddressBalance{
			WatchedAddress: *w,
			Balance:        outcomes[i].ValueOr(decimal.Zero),
			Degraded:       outcomes[i].Failed(),
		}
		if entry.Degraded {
			list.Degraded = true
			s.logger.WithField("address", w.Address).WithError(outcomes[i].Err).Debug("watchlist balance lookup failed")
		}
		list.TotalBalance = list.TotalBalance.Add(entry.Balance)
		list.Addresses = append(list.Addresses, entry)
	}
	return list, nil
}

// RemoveWatchedAddress stops watching the entry with id
func (s *ExplorerService) RemoveWatchedAddress(ctx context.Context, id int64) error {
	if s.watchlist == nil {
		return apperrors.NewInternalError("watchlist store is not configured", nil)
	}
	removed, err := s.watchlist.RemoveWatched(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return apperrors.NewNotFoundError("watched address", strconv.FormatInt(id, 10))
	}
	return nil
}
