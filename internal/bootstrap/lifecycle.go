package bootstrap

import (
	"context"
	"net/http"
	"sync"
	"time"

	chclient "meridian/internal/adapters/clickhouse"
	"meridian/internal/adapters/kafka"
	pgclient "meridian/internal/adapters/postgres"
	redisclient "meridian/internal/adapters/redis"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 30 * time.Second,
	}
}

// Shutdown performs coordinated cleanup of all components in the correct order:
// 1. Metrics endpoint stops accepting scrapes
// 2. Feedback consumer unblocks before waiting for goroutines
// 3. Producer closes after the background goroutines (the stats flush may still emit)
// 4. Errors and logs flushed
// 5. Database connections last
// Every argument may be nil.
func (l *Lifecycle) Shutdown(
	wg *sync.WaitGroup,
	metricsServer *http.Server,
	feedbackConsumer *kafka.Consumer,
	kafkaProducer *kafka.Producer,
	pgClient *pgclient.Client,
	chClient *chclient.Client,
	redisClient *redisclient.Client,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	// ========================================
	// Step 1: Stop Metrics Server (5s timeout)
	// ========================================
	log.Info("[1/7] Stopping metrics server...")
	if metricsServer != nil {
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		if err := metricsServer.Shutdown(httpCtx); err != nil {
			log.Errorw("Metrics server shutdown failed", "error", err)
		} else {
			log.Info("✓ Metrics server stopped")
		}
		httpCancel()
	}

	// ========================================
	// Step 2: Close Kafka Consumer
	// Close BEFORE waiting for goroutines, this unblocks ReadMessage()
	// ========================================
	log.Info("[2/7] Closing Kafka consumer...")
	if feedbackConsumer != nil {
		if err := feedbackConsumer.Close(); err != nil {
			log.Errorw("Kafka consumer close failed", "consumer", "feedback", "error", err)
		} else {
			log.Info("✓ Kafka consumer closed")
		}
	}

	// ========================================
	// Step 3: Wait for Background Goroutines
	// ========================================
	log.Info("[3/7] Waiting for background goroutines...")
	l.waitForGoroutines(wg, 10*time.Second, log)

	// ========================================
	// Step 4: Close Kafka Producer
	// ========================================
	log.Info("[4/7] Closing Kafka producer...")
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		} else {
			log.Info("✓ Kafka producer closed")
		}
	}

	// ========================================
	// Step 5: Flush Error Tracker
	// ========================================
	log.Info("[5/7] Flushing error tracker...")
	l.flushErrorTracker(shutdownCtx, errorTracker, log)

	// ========================================
	// Step 6: Sync Logs
	// ========================================
	log.Info("[6/7] Syncing logs...")
	if err := logger.Sync(); err != nil {
		log.Warn("Log sync completed with warnings")
	} else {
		log.Info("✓ Logs synced")
	}

	// ========================================
	// Step 7: Close Database Connections
	// ========================================
	log.Info("[7/7] Closing database connections...")
	l.closeDatabases(pgClient, chClient, redisClient, log)

	log.Info("✅ Graceful shutdown complete")
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	if wg == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("✓ All goroutines finished")
	case <-time.After(timeout):
		log.Warnw("⚠ Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Errorw("Error tracker flush failed", "error", err)
	} else {
		log.Info("✓ Error tracker flushed")
	}
}

// closeDatabases closes all database connections
func (l *Lifecycle) closeDatabases(
	pgClient *pgclient.Client,
	chClient *chclient.Client,
	redisClient *redisclient.Client,
	log *logger.Logger,
) {
	var dbErrors []error

	if pgClient != nil {
		if err := pgClient.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "postgres"))
		}
	}

	if chClient != nil {
		if err := chClient.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "clickhouse"))
		}
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "redis"))
		}
	}

	if len(dbErrors) > 0 {
		log.Errorw("Database close errors", "errors", dbErrors)
	} else {
		log.Info("✓ Database connections closed")
	}
}
