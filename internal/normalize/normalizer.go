// Package normalize turns raw spreadsheet rows into typed external records.
package normalize

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/housing-reconciler/internal/common"
	"github.com/joseph-ayodele/housing-reconciler/internal/entity"
	"github.com/joseph-ayodele/housing-reconciler/internal/spreadsheet"
)

// ReasonInvalidDate is the rejection reason for unparsable date cells.
const ReasonInvalidDate = "InvalidDate"

// Column declares one input column: the record slot it feeds, the document
// field it maps back to, and the header spellings that identify it.
type Column struct {
	Attr     entity.Attr
	Field    string
	Headers  []string
	Required bool
}

// RowError is a rejected row. Row is the 1-based spreadsheet row number;
// Key is the row's natural key, which stays present in the dataset.
type RowError struct {
	Row    int    `json:"row"`
	Key    string `json:"key"`
	Column string `json:"column"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("%s: row %d column %q value %q: %s", common.CodeRowRejected, e.Row, e.Column, e.Value, e.Reason)
}

func (e RowError) Unwrap() error {
	return common.ErrRowRejected
}

// Result is the outcome of normalizing one table.
type Result struct {
	Records  []entity.ExternalRecord
	Rejected []RowError
	// Skipped counts rows without a natural key (blank trailing rows).
	Skipped int
}

// Binding is the resolved column position of every declared attribute.
type Binding struct {
	index   map[entity.Attr]int
	headers map[entity.Attr]string
}

// Bind locates the declared columns in header. Unknown columns are ignored;
// any missing required column is a fatal input error.
func Bind(columns []Column, header []string) (Binding, error) {
	t := spreadsheet.Table{Header: header}
	byName := t.HeaderIndex()

	b := Binding{index: map[entity.Attr]int{}, headers: map[entity.Attr]string{}}
	var missing []string
	for _, col := range columns {
		found := false
		for _, h := range col.Headers {
			if idx, ok := byName[spreadsheet.NormalizeHeader(h)]; ok {
				b.index[col.Attr] = idx
				b.headers[col.Attr] = h
				found = true
				break
			}
		}
		if !found && col.Required {
			missing = append(missing, col.Headers[0])
		}
	}
	if len(missing) > 0 {
		return Binding{}, common.FatalInputError("missing required columns: "+strings.Join(missing, ", "), nil)
	}
	if _, ok := b.index[entity.AttrKey]; !ok {
		return Binding{}, common.FatalInputError("no natural key column declared", nil)
	}
	return b, nil
}

// Normalizer converts tables into records for one collection's column set.
type Normalizer struct {
	columns []Column
	logger  *slog.Logger
}

func New(columns []Column, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{columns: columns, logger: logger}
}

// Normalize binds the header and converts every data row.
func (n *Normalizer) Normalize(t *spreadsheet.Table) (*Result, error) {
	b, err := Bind(n.columns, t.Header)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for i, row := range t.Rows {
		cells := make([]any, len(row))
		for j := range row {
			cells[j] = spreadsheet.CellValue(row, j)
		}
		// header is row 1
		rec, ok, rowErr := b.Record(i+2, cells)
		switch {
		case rowErr != nil:
			n.logger.Warn("normalize.row.rejected", "row", rowErr.Row, "column", rowErr.Column, "value", rowErr.Value, "reason", rowErr.Reason)
			res.Rejected = append(res.Rejected, *rowErr)
		case !ok:
			res.Skipped++
		default:
			res.Records = append(res.Records, rec)
		}
	}

	n.logger.Info("normalize.ok",
		"rows", len(t.Rows),
		"records", len(res.Records),
		"rejected", len(res.Rejected),
		"skipped", res.Skipped,
	)
	return res, nil
}

// RejectedKeys returns the natural keys of the rejected rows.
func (r *Result) RejectedKeys() []string {
	keys := make([]string, 0, len(r.Rejected))
	for _, e := range r.Rejected {
		if e.Key != "" {
			keys = append(keys, e.Key)
		}
	}
	return keys
}

// Record converts one row of heterogeneous cell values. ok is false for rows
// without a natural key, which are skipped rather than rejected.
func (b Binding) Record(rowNum int, cells []any) (entity.ExternalRecord, bool, *RowError) {
	get := func(attr entity.Attr) any {
		idx, ok := b.index[attr]
		if !ok || idx >= len(cells) {
			return nil
		}
		return cells[idx]
	}
	text := func(attr entity.Attr) string {
		switch v := get(attr).(type) {
		case nil:
			return ""
		case string:
			return strings.Join(strings.Fields(v), " ")
		default:
			return strings.TrimSpace(fmt.Sprint(v))
		}
	}

	rec := entity.ExternalRecord{Row: rowNum, Key: text(entity.AttrKey)}
	if rec.Key == "" {
		return entity.ExternalRecord{}, false, nil
	}

	rec.DisplayName = text(entity.AttrName)
	if rec.DisplayName == "" {
		rec.DisplayName = rec.Key
	}
	rec.Amount = CoerceAmount(get(entity.AttrAmount))
	rec.Reference = text(entity.AttrReference)
	rec.ContractNumber = text(entity.AttrContract)
	rec.Room = text(entity.AttrRoom)
	rec.Note = text(entity.AttrNote)

	for _, attr := range []entity.Attr{entity.AttrArrivalDate, entity.AttrPeriodStart, entity.AttrPeriodEnd} {
		raw := get(attr)
		d, err := CoerceDate(raw)
		if err != nil {
			return entity.ExternalRecord{}, false, &RowError{
				Row:    rowNum,
				Key:    rec.Key,
				Column: b.headers[attr],
				Value:  fmt.Sprint(raw),
				Reason: ReasonInvalidDate,
				Detail: err.Error(),
			}
		}
		switch attr {
		case entity.AttrArrivalDate:
			rec.ArrivalDate = d
		case entity.AttrPeriodStart:
			rec.PeriodStart = d
		case entity.AttrPeriodEnd:
			rec.PeriodEnd = d
		}
	}
	return rec, true, nil
}
