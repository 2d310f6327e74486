package trading

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"

	"microtrade/internal/models"
)

// SettingRepo is the slice of the repository the mode store needs.
type SettingRepo interface {
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
}

// SettingModeStore persists the trading mode as a system setting so it
// survives restarts.
type SettingModeStore struct {
	Repo SettingRepo
}

func (s *SettingModeStore) LoadMode(ctx context.Context) (Mode, bool, error) {
	if s == nil || s.Repo == nil {
		return "", false, nil
	}
	row, err := s.Repo.GetSystemSettingByKey(ctx, models.SettingTradingMode)
	if err != nil {
		return "", false, err
	}
	if row == nil {
		return "", false, nil
	}
	var raw string
	if err := json.Unmarshal(row.Value, &raw); err != nil {
		return "", false, err
	}
	m, ok := ParseMode(raw)
	if !ok {
		return "", false, nil
	}
	return m, true, nil
}

func (s *SettingModeStore) SaveMode(ctx context.Context, m Mode) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	value, err := json.Marshal(string(m))
	if err != nil {
		return err
	}
	return s.Repo.UpsertSystemSetting(ctx, &models.SystemSetting{
		Key:         models.SettingTradingMode,
		Value:       datatypes.JSON(value),
		Description: "active trading mode",
	})
}
