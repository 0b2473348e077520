package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/couchcryptid/cme-data-etl/internal/domain"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second
)

// Archive keeps every raw DONKI response in a MongoDB collection, one
// document per API call. It implements donki.Archiver.
type Archive struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *slog.Logger
}

// Connect opens a client for uri and pings the primary before returning.
func Connect(ctx context.Context, uri, database, collection string, logger *slog.Logger) (*Archive, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("create mongo client: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, pingTimeout)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.WithoutCancel(ctx), pingTimeout)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, fmt.Errorf("connect to mongo (ping failed): %w", err)
	}

	logger.Info("raw response archive connected", "database", database, "collection", collection)
	a := newArchive(client.Database(database).Collection(collection), logger)
	a.client = client
	return a, nil
}

func newArchive(coll *mongo.Collection, logger *slog.Logger) *Archive {
	return &Archive{coll: coll, logger: logger}
}

// Archive inserts resp as a new document.
func (a *Archive) Archive(ctx context.Context, resp domain.RawResponse) error {
	res, err := a.coll.InsertOne(ctx, resp)
	if err != nil {
		return fmt.Errorf("archive raw response for %s: %w", resp.ProcessDate, err)
	}
	a.logger.Debug("raw response archived", "process_date", resp.ProcessDate, "id", res.InsertedID)
	return nil
}

// Close disconnects the underlying client.
func (a *Archive) Close(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	return a.client.Disconnect(ctx)
}
