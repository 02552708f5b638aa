package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/backend/internal/domain"
)

func TestReceiptRef(t *testing.T) {
	n, ok := ReceiptRef("12")
	require.True(t, ok)
	assert.Equal(t, 12, n)

	n, ok = ReceiptRef("#3")
	require.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = ReceiptRef("sale-0190f0c8")
	assert.False(t, ok)
	_, ok = ReceiptRef("0")
	assert.False(t, ok)
}

func TestPlanAdjustmentSkipsUnchangedLines(t *testing.T) {
	current := map[string]domain.Product{
		"p1": {ID: "p1", Name: "Rice", Stock: 10},
		"p2": {ID: "p2", Name: "Oil", Stock: 4},
	}
	adj := domain.StockAdjustment{
		ID:        "adj-1",
		TenantID:  "t1",
		Actor:     "admin",
		CreatedAt: time.Now().UTC(),
		Lines: []domain.StockAdjustmentLine{
			{ProductID: "p1", NewStock: 10, Reason: "count"},
			{ProductID: "p2", NewStock: 7, Reason: "count"},
		},
	}

	planned, movements, ok := PlanAdjustment(adj, current)
	require.True(t, ok)
	require.Len(t, planned.Lines, 1)
	assert.Equal(t, 4, planned.Lines[0].OldStock)
	assert.Equal(t, 3, planned.Lines[0].Difference)
	require.Len(t, movements, 1)
	assert.Equal(t, "adjust/adj-1/p2", movements[0].SourceKey)
	assert.Equal(t, 3, movements[0].Delta)
}

func TestPlanAdjustmentReportsNoChanges(t *testing.T) {
	current := map[string]domain.Product{"p1": {ID: "p1", Stock: 5}}
	adj := domain.StockAdjustment{ID: "adj-2", Lines: []domain.StockAdjustmentLine{{ProductID: "p1", NewStock: 5}}}

	_, movements, ok := PlanAdjustment(adj, current)
	assert.False(t, ok)
	assert.Empty(t, movements)
}
