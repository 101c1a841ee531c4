package gcp

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
)

// Clients bundles the GCP clients the label functions share.
type Clients struct {
	Storage   *storage.Client
	Firestore *firestore.Client
}

// NewClients creates the storage and Firestore clients for projectID.
func NewClients(ctx context.Context, projectID string) (*Clients, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create GCP clients")
	}

	firestoreClient, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		_ = firestoreClient.Close()
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	return &Clients{Storage: storageClient, Firestore: firestoreClient}, nil
}

func (c *Clients) Close() error {
	return errors.Join(c.Storage.Close(), c.Firestore.Close())
}
