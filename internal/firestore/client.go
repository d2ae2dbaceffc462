// Package firestore stores passage embeddings and conversations in Cloud
// Firestore.
//
// Collections:
//
//	embedding_sets/{documentID}                    current generation and count
//	embedding_sets/{documentID}/embeddings/{id}    one embedding per document
//	conversations/{conversationID}                 transcript with embedded messages
//
// Listing conversations needs a composite index on conversations over
// (document_id, user_id, created_at desc, __name__ desc).
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	embeddingSetsCollection = "embedding_sets"
	embeddingsCollection    = "embeddings"
	conversationsCollection = "conversations"
)

// NewClient opens a Firestore client for the given project and database.
// FIRESTORE_EMULATOR_HOST is honored by the underlying client.
func NewClient(ctx context.Context, projectID, databaseID string, opts ...option.ClientOption) (*firestore.Client, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return client, nil
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}
