package archive

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/hashicorp/go-multierror"
	"google.golang.org/api/option"
)

// Client wraps the GCP clients the archive writes to
type Client struct {
	ProjectID       string
	FirestoreClient *firestore.Client
	PubSubClient    *pubsub.Client
}

// NewClient creates Firestore and Pub/Sub clients for projectID. Emulators are
// picked up from FIRESTORE_EMULATOR_HOST and PUBSUB_EMULATOR_HOST.
func NewClient(ctx context.Context, projectID string, opts ...option.ClientOption) (*Client, error) {
	firestoreClient, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	pubsubClient, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		firestoreClient.Close()
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}

	return &Client{
		ProjectID:       projectID,
		FirestoreClient: firestoreClient,
		PubSubClient:    pubsubClient,
	}, nil
}

// Close closes both clients
func (c *Client) Close() error {
	var result *multierror.Error
	if err := c.FirestoreClient.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close Firestore client: %w", err))
	}
	if err := c.PubSubClient.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close Pub/Sub client: %w", err))
	}
	return result.ErrorOrNil()
}

// StoreDocument stores a document in Firestore
func (c *Client) StoreDocument(ctx context.Context, collection, docID string, data interface{}) error {
	_, err := c.FirestoreClient.Collection(collection).Doc(docID).Set(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	return nil
}

// PublishMessage publishes to topicName, creating the topic on first use
func (c *Client) PublishMessage(ctx context.Context, topicName string, data []byte, attributes map[string]string) error {
	topic := c.PubSubClient.Topic(topicName)
	defer topic.Stop()

	exists, err := topic.Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check topic existence: %w", err)
	}
	if !exists {
		if _, err := c.PubSubClient.CreateTopic(ctx, topicName); err != nil {
			return fmt.Errorf("failed to create topic: %w", err)
		}
	}

	result := topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attributes,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}
