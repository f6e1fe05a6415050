package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-switch/internal/apierrors"
	"github.com/akylbek/payment-system/payment-switch/internal/interfaces"
	"github.com/akylbek/payment-system/payment-switch/internal/models"
	"github.com/akylbek/payment-system/payment-switch/internal/telemetry"
)

type seedFile struct {
	Merchants         []models.MerchantAccount          `json:"merchants"`
	ConnectorAccounts []models.MerchantConnectorAccount `json:"connector_accounts"`
}

// seedAccounts inserts the accounts listed in path. Accounts that already
// exist are left alone.
func seedAccounts(ctx context.Context, store interfaces.StorageInterface, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("decode seed file %s: %w", path, err)
	}

	for i := range seed.Merchants {
		m := &seed.Merchants[i]
		if _, err := store.InsertMerchantAccount(ctx, m); err != nil && !apierrors.IsDuplicate(err) {
			return fmt.Errorf("seed merchant %s: %w", m.MerchantID, err)
		}
	}
	for i := range seed.ConnectorAccounts {
		mca := &seed.ConnectorAccounts[i]
		if _, err := store.InsertMerchantConnectorAccount(ctx, mca); err != nil && !apierrors.IsDuplicate(err) {
			return fmt.Errorf("seed connector account %s/%s: %w", mca.MerchantID, mca.ConnectorName, err)
		}
	}

	telemetry.Logger.Info("Seeded accounts",
		zap.Int("merchants", len(seed.Merchants)),
		zap.Int("connector_accounts", len(seed.ConnectorAccounts)),
	)
	return nil
}
