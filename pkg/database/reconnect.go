package database

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"gorm.io/gorm"
)

// ReconnectPlugin pings the pool before each statement and retries when the connection was lost.
type ReconnectPlugin struct {
	logger         *slog.Logger
	maxRetries     int
	retryDelay     time.Duration
	reconnectCount atomic.Int64
}

// NewReconnectPlugin creates a new reconnect plugin.
func NewReconnectPlugin(logger *slog.Logger) *ReconnectPlugin {
	return &ReconnectPlugin{
		logger:     logger,
		maxRetries: 3,
		retryDelay: 500 * time.Millisecond,
	}
}

// Name returns the plugin name.
func (p *ReconnectPlugin) Name() string {
	return "reconnect_plugin"
}

// Initialize registers the health check before every callback chain.
func (p *ReconnectPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	registrations := []struct {
		name     string
		register func(string, func(*gorm.DB)) error
	}{
		{"reconnect:before_query", cb.Query().Before("gorm:query").Register},
		{"reconnect:before_create", cb.Create().Before("gorm:create").Register},
		{"reconnect:before_update", cb.Update().Before("gorm:update").Register},
		{"reconnect:before_delete", cb.Delete().Before("gorm:delete").Register},
		{"reconnect:before_row", cb.Row().Before("gorm:row").Register},
		{"reconnect:before_raw", cb.Raw().Before("gorm:raw").Register},
	}

	for _, r := range registrations {
		if err := r.register(r.name, p.beforeStatement); err != nil {
			return err
		}
	}
	return nil
}

func (p *ReconnectPlugin) beforeStatement(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}

	err = sqlDB.PingContext(ctx)
	if err == nil || !p.shouldReconnect(err) {
		return
	}

	p.logger.Warn("database connection lost, attempting to reconnect", slog.String("error", err.Error()))
	if !p.attemptReconnect(ctx, sqlDB) {
		p.logger.Error("database reconnection failed after retries")
	}
}

// shouldReconnect determines if an error warrants a reconnection attempt.
func (p *ReconnectPlugin) shouldReconnect(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"connection timed out",
		"eof",
		"bad connection",
		"invalid connection",
		"closed network connection",
		"connection lost",
		"server closed",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

func (p *ReconnectPlugin) attemptReconnect(ctx context.Context, sqlDB *sql.DB) bool {
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(p.retryDelay * time.Duration(attempt)):
		}

		if err := sqlDB.PingContext(ctx); err == nil {
			total := p.reconnectCount.Add(1)
			p.logger.Info("database reconnection successful", slog.Int64("total_reconnects", total))
			return true
		}

		p.logger.Warn("reconnection attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", p.maxRetries),
		)
	}

	return false
}

// ReconnectCount returns the total number of successful reconnections.
func (p *ReconnectPlugin) ReconnectCount() int64 {
	return p.reconnectCount.Load()
}
