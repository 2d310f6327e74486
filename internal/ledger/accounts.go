package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"microtrade/internal/models"
	"microtrade/internal/repository"
	"microtrade/internal/trading"
)

// EnsureAccounts creates the default account rows at startup when absent.
// Existing accounts keep their balances.
func EnsureAccounts(ctx context.Context, repo repository.Repository, initialBalance, commissionRate float64, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, mode := range trading.Modes {
		existing, err := repo.GetActiveAccount(ctx, string(mode))
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		initial := decimal.NewFromFloat(initialBalance)
		acct := &models.Account{
			Name:           "default-" + string(mode),
			TradingMode:    string(mode),
			InitialBalance: initial,
			CurrentBalance: initial,
			CommissionRate: decimal.NewFromFloat(commissionRate),
			IsActive:       true,
		}
		if err := repo.UpsertAccount(ctx, acct); err != nil {
			return err
		}
		logger.Info("account created",
			zap.String("mode", string(mode)), zap.String("initial", initial.String()))
	}
	return nil
}

// PaperBalanceSource exposes the simulated account balance to the paper
// broker.
type PaperBalanceSource struct {
	Repo repository.Repository
}

func (s *PaperBalanceSource) PaperBalance(ctx context.Context) (decimal.Decimal, string, error) {
	acct, err := s.Repo.GetActiveAccount(ctx, string(trading.ModePaper))
	if err != nil {
		return decimal.Zero, "KRW", err
	}
	if acct == nil {
		return decimal.Zero, "KRW", ErrAccountNotFound
	}
	return acct.CurrentBalance, "KRW", nil
}
