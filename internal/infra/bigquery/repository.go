package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// Table names inside the configured dataset.
const (
	rawTransactionsTable = "raw_transactions"
	envelopesTable       = "envelopes"
	accountsTable        = "accounts"
	transactionsTable    = "transactions"
)

// Repository is the BigQuery-backed collaborator for the dashboard. It
// holds a shared client to avoid creating a connection per operation.
type Repository struct {
	client    *bigquery.Client
	projectID string
	dataset   string
}

// NewRepository creates a Repository with its own client.
func NewRepository(ctx context.Context, projectID, dataset string) (*Repository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewRepository: project ID is required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return NewRepositoryWithClient(client, projectID, dataset), nil
}

// NewRepositoryWithClient wraps an existing client.
func NewRepositoryWithClient(client *bigquery.Client, projectID, dataset string) *Repository {
	return &Repository{client: client, projectID: projectID, dataset: dataset}
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// table returns the fully qualified, backtick-quoted table name.
func (r *Repository) table(name string) string {
	return qualifiedTable(r.projectID, r.dataset, name)
}

func qualifiedTable(projectID, dataset, name string) string {
	return "`" + projectID + "." + dataset + "." + name + "`"
}

// runDML runs a statement and waits for it to finish.
func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}
