package wiper

import (
	"context"
	"time"

	"github.com/openballot/voting-core/common"
	"github.com/openballot/voting-core/config"
	"github.com/openballot/voting-core/db/dao"
	"github.com/openballot/voting-core/logging"
	"github.com/openballot/voting-core/metrics"
)

const wipeInterval = 24 * time.Hour

// AuditWiper enforces audit-log retention. Only the audit log is swept;
// tokens and ballots are kept indefinitely as the integrity trail.
type AuditWiper struct {
	config        *config.Config
	daoManager    *dao.DaoManager
	metricService *metrics.MetricService
}

func NewAuditWiper(cfg *config.Config, daoManager *dao.DaoManager, metricService *metrics.MetricService) *AuditWiper {
	return &AuditWiper{
		config:        cfg,
		daoManager:    daoManager,
		metricService: metricService,
	}
}

func (w *AuditWiper) AuditWipeLoop() {
	ticker := time.NewTicker(wipeInterval)
	for range ticker.C {
		err := w.AuditWipe()
		if err != nil {
			logging.Logger.Errorf("audit wipe failed, err=%+v", err)
			time.Sleep(common.RetryInterval)
		}
	}
}

func (w *AuditWiper) AuditWipe() error {
	ctx, cancel := context.WithTimeout(context.Background(), common.RequestTimeout)
	defer cancel()

	retention := time.Duration(w.config.RetentionConfig.AuditRetentionDays) * 24 * time.Hour
	cutoff := time.Now().Add(-retention).Unix()
	wiped, err := w.daoManager.DeleteEntriesBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if wiped > 0 {
		w.metricService.AddAuditWipedEntries(wiped)
		logging.Logger.Infof("audit retention removed %d entries older than %d days",
			wiped, w.config.RetentionConfig.AuditRetentionDays)
	}
	return nil
}
