package climate

import (
	"context"
	"log/slog"
	"time"

	"climate-api/internal/mqtt"
)

// SchemaChecker re-validates the declared tables against the store.
type SchemaChecker interface {
	Check(ctx context.Context) error
}

// RegisterMQTTHandler re-checks the schema whenever the external loader
// announces a freshly loaded dataset.
func RegisterMQTTHandler(subscriber mqtt.MQTTSubscriber, checker SchemaChecker, logger *slog.Logger) {
	subscriber.SetMessageHandler(func(msg mqtt.DatasetLoaded) error {
		logger.Info("dataset reloaded, revalidating schema",
			"dataset", msg.Dataset,
			"loaded_at", msg.LoadedAt,
		)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := checker.Check(ctx); err != nil {
			logger.Error("schema validation failed after reload",
				"dataset", msg.Dataset,
				"error", err,
			)
			return err
		}

		logger.Debug("schema valid after reload", "dataset", msg.Dataset)
		return nil
	})
}
