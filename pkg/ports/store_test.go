package ports_test

import (
	"context"
	"testing"

	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/ports"
)

// MockStore is an in-memory implementation of ReportStore for testing purposes.
type MockStore struct {
	data map[string]domain.Report
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]domain.Report),
	}
}

func (m *MockStore) Save(ctx context.Context, report *domain.Report) error {
	copied := *report
	copied.Targets = append([]string(nil), report.Targets...)
	m.data[report.ID] = copied
	return nil
}

func (m *MockStore) Load(ctx context.Context, id string) (*domain.Report, error) {
	report, ok := m.data[id]
	if !ok {
		return nil, domain.ErrReportNotFound
	}
	return &report, nil
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	delete(m.data, id)
	return nil
}

func (m *MockStore) List(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestReportStore_Contract(t *testing.T) {
	// The mock doubles as a sanity check for the shared contract suite.
	ports.RunReportStoreContract(t, NewMockStore())
}

func TestCapabilities(t *testing.T) {
	if ports.IsTarget(struct{}{}) {
		t.Error("Expected plain values not to be targets")
	}
	if key := ports.PartitionKeyOf(42); key != nil {
		t.Errorf("Expected nil partition key, got %v", key)
	}
	if _, ok := ports.LocationOf("x"); ok {
		t.Error("Expected no location for a string")
	}
}
