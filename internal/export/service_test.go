package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/housing-reconciler/constants"
	"github.com/joseph-ayodele/housing-reconciler/internal/repository"
	"github.com/joseph-ayodele/housing-reconciler/internal/services/reconcile"
	"github.com/joseph-ayodele/housing-reconciler/internal/spreadsheet"
)

func TestExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 5, 10, 0, 0, 0, reconcile.BusinessLocation))
	store := repository.NewMemoryStore(clock, nil)

	cfg := reconcile.DefaultConfig()
	cfg.Clock = clock
	engine, err := reconcile.NewEngine(store, nil, cfg, nil)
	require.NoError(t, err)

	table := &spreadsheet.Table{
		Header: []string{"Employee ID", "Name", "Arrival Date", "Rent", "Property", "Room", "Note"},
		Rows: [][]string{
			{"U1", "Amy", "2024-03-01", "3500", "东海", "A1", "night shift"},
			{"U2", "Ben", "", "", "", "", ""},
		},
	}
	_, err = engine.Reconcile(ctx, constants.Employees, table, false)
	require.NoError(t, err)

	b, err := NewService(store, nil, nil).ExportXLSX(ctx, constants.Employees)
	require.NoError(t, err)

	exported, err := spreadsheet.Read(bytes.NewReader(b), "employees.xlsx")
	require.NoError(t, err)
	assert.Equal(t, IDHeader, exported.Header[len(exported.Header)-1])
	require.Len(t, exported.Rows, 2)
	assert.Equal(t, "東海", spreadsheet.CellValue(exported.Rows[0], 4), "canonical spelling is exported")

	rep, err := engine.Reconcile(ctx, constants.Employees, exported, false)
	require.NoError(t, err)
	assert.Empty(t, rep.Ops, "re-importing an export changes nothing")
}

func TestExportUnknownCollection(t *testing.T) {
	_, err := NewService(repository.NewMemoryStore(nil, nil), nil, nil).ExportXLSX(context.Background(), "tenants")
	assert.Error(t, err)
}
