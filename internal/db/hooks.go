package db

import (
	"time"

	"gorm.io/gorm"

	"example.com/eazyy/fulfillment/internal/metrics"
)

const startTimeKey = "metrics:start_time"

// RegisterMetricsHooks registers GORM callbacks that feed database metrics
func RegisterMetricsHooks(db *gorm.DB) {
	db.Callback().Create().After("gorm:create").Register("metrics:create", record(metrics.DBQueryTypeInsert))
	db.Callback().Query().After("gorm:query").Register("metrics:query", record(metrics.DBQueryTypeSelect))
	db.Callback().Update().After("gorm:update").Register("metrics:update", record(metrics.DBQueryTypeUpdate))
	db.Callback().Delete().After("gorm:delete").Register("metrics:delete", record(metrics.DBQueryTypeDelete))
	db.Callback().Raw().After("gorm:raw").Register("metrics:raw", record(metrics.DBQueryTypeRaw))
}

// RegisterDurationHooks stamps the start time before each operation
func RegisterDurationHooks(db *gorm.DB) {
	db.Callback().Create().Before("gorm:create").Register("duration:create", markStart)
	db.Callback().Query().Before("gorm:query").Register("duration:query", markStart)
	db.Callback().Update().Before("gorm:update").Register("duration:update", markStart)
	db.Callback().Delete().Before("gorm:delete").Register("duration:delete", markStart)
	db.Callback().Raw().Before("gorm:raw").Register("duration:raw", markStart)
}

func record(queryType string) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		success := tx.Error == nil || IsRecordNotFoundError(tx.Error)
		metrics.GetCollector().RecordDatabaseQuery(queryType, success, elapsed(tx))
	}
}

func markStart(tx *gorm.DB) {
	tx.InstanceSet(startTimeKey, time.Now())
}

func elapsed(tx *gorm.DB) time.Duration {
	if start, ok := tx.InstanceGet(startTimeKey); ok {
		if t, ok := start.(time.Time); ok {
			return time.Since(t)
		}
	}
	return 0
}
