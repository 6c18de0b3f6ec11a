package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/housing-reconciler/internal/common"
	"github.com/joseph-ayodele/housing-reconciler/internal/entity"
	"github.com/joseph-ayodele/housing-reconciler/internal/spreadsheet"
)

var testColumns = []Column{
	{Attr: entity.AttrKey, Field: "employeeId", Headers: []string{"Employee ID", "員工編號"}, Required: true},
	{Attr: entity.AttrName, Field: "name", Headers: []string{"Name"}, Required: true},
	{Attr: entity.AttrArrivalDate, Field: "arrivalDate", Headers: []string{"Arrival Date"}},
	{Attr: entity.AttrAmount, Field: "rent", Headers: []string{"Rent"}},
	{Attr: entity.AttrReference, Field: "propertyName", Headers: []string{"Property"}},
}

func TestNormalize(t *testing.T) {
	table := &spreadsheet.Table{
		Header: []string{"  employee id ", "NAME", "Arrival　Date", "Rent", "Property", "Unknown"},
		Rows: [][]string{
			{"U1", "Alice", "45292", "NT$3,500", "東海", "x"},
			{"", "", "", "", "", ""},
			{"U2", "Bob", "someday", "", "東海"},
			{"U3", "", "2024/02/01", "", ""},
			{"U4", "Dan"},
		},
	}

	res, err := New(testColumns, nil).Normalize(table)
	require.NoError(t, err)

	require.Len(t, res.Records, 3)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Rejected, 1)

	alice := res.Records[0]
	assert.Equal(t, 2, alice.Row)
	assert.Equal(t, "U1", alice.Key)
	assert.Equal(t, "Alice", alice.DisplayName)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *alice.ArrivalDate)
	assert.Equal(t, 3500.0, alice.Amount)
	assert.Equal(t, "東海", alice.Reference)

	rej := res.Rejected[0]
	assert.Equal(t, 4, rej.Row)
	assert.Equal(t, ReasonInvalidDate, rej.Reason)
	assert.Equal(t, "someday", rej.Value)
	assert.True(t, errors.Is(rej, common.ErrRowRejected))

	u3 := res.Records[1]
	assert.Equal(t, "U3", u3.DisplayName, "blank name falls back to the key")
	assert.Equal(t, 0.0, u3.Amount)

	u4 := res.Records[2]
	assert.Nil(t, u4.ArrivalDate)
	assert.Empty(t, u4.Reference)
}

func TestNormalizeMissingRequiredColumn(t *testing.T) {
	table := &spreadsheet.Table{Header: []string{"Employee ID", "Rent"}}
	_, err := New(testColumns, nil).Normalize(table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrFatalInput))
	assert.True(t, common.IsCode(err, common.CodeFatalInput))
	assert.Contains(t, err.Error(), "Name")
}

func TestBindAlternateHeader(t *testing.T) {
	b, err := Bind(testColumns, []string{"員工編號", "Name"})
	require.NoError(t, err)

	rec, ok, rowErr := b.Record(7, []any{" E-9 ", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)})
	require.Nil(t, rowErr)
	require.True(t, ok)
	assert.Equal(t, "E-9", rec.Key)
	assert.Equal(t, 7, rec.Row)
}
