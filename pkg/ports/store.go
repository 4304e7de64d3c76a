package ports

import (
	"context"

	"github.com/aretw0/fixpoint/pkg/domain"
)

// ReportStore defines the interface for persisting run reports.
type ReportStore interface {
	// Save persists the report under its ID.
	Save(ctx context.Context, report *domain.Report) error

	// Load retrieves a report.
	// Returns domain.ErrReportNotFound if the report does not exist.
	Load(ctx context.Context, id string) (*domain.Report, error)

	// Delete removes a report.
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all stored reports.
	List(ctx context.Context) ([]string, error)
}
