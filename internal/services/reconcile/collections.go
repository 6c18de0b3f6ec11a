package reconcile

import (
	"github.com/joseph-ayodele/housing-reconciler/constants"
	"github.com/joseph-ayodele/housing-reconciler/internal/entity"
	"github.com/joseph-ayodele/housing-reconciler/internal/normalize"
	"github.com/joseph-ayodele/housing-reconciler/internal/plan"
	"github.com/joseph-ayodele/housing-reconciler/internal/reference"
)

// Document fields shared by several collections.
const (
	FieldPropertyID   = "propertyId"
	FieldPropertyName = "propertyName"
	FieldStatus       = "status"
)

// FieldFunc computes the target fields of a record. canon is the run's
// name canonicalizer.
type FieldFunc func(rec entity.ExternalRecord, fc plan.FieldContext, canon *reference.Canonicalizer) map[string]any

// CollectionSpec parameterizes the engine for one collection.
type CollectionSpec struct {
	Name     constants.Collection
	KeyField string
	Columns  []normalize.Column
	// CanonicalKey compares keys by canonical name instead of exact text.
	CanonicalKey bool
	// Reference is nil when records name no referenced document.
	Reference   *reference.Target
	Fields      FieldFunc
	Orphans     plan.OrphanPolicy
	StatusField string
}

var propertyTarget = &reference.Target{Collection: string(constants.Properties), NameField: "name"}

func refFields(out map[string]any, fc plan.FieldContext) {
	if fc.Ref == nil {
		out[FieldPropertyID] = nil
		out[FieldPropertyName] = nil
		return
	}
	out[FieldPropertyID] = fc.Ref.ID
	out[FieldPropertyName] = fc.Ref.Name
}

func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// EmployeesSpec reconciles the tenant roster.
func EmployeesSpec() CollectionSpec {
	return CollectionSpec{
		Name:     constants.Employees,
		KeyField: "employeeId",
		Columns: []normalize.Column{
			{Attr: entity.AttrKey, Field: "employeeId", Headers: []string{"Employee ID", "employee_id", "employeeId", "員工編號", "工號"}, Required: true},
			{Attr: entity.AttrName, Field: "name", Headers: []string{"Name", "姓名"}, Required: true},
			{Attr: entity.AttrArrivalDate, Field: "arrivalDate", Headers: []string{"Arrival Date", "arrival_date", "arrivalDate", "入住日期", "到職日"}, Required: true},
			{Attr: entity.AttrAmount, Field: "rent", Headers: []string{"Rent", "租金", "房租"}, Required: true},
			{Attr: entity.AttrReference, Field: FieldPropertyName, Headers: []string{"Property", "property_name", "propertyName", "宿舍", "宿舍名稱"}, Required: true},
			{Attr: entity.AttrRoom, Field: "room", Headers: []string{"Room", "房號"}},
			{Attr: entity.AttrNote, Field: "note", Headers: []string{"Note", "備註"}},
		},
		Reference: propertyTarget,
		Fields: func(rec entity.ExternalRecord, fc plan.FieldContext, _ *reference.Canonicalizer) map[string]any {
			out := map[string]any{
				"employeeId":  rec.Key,
				"name":        rec.DisplayName,
				"arrivalDate": entity.FormatDate(rec.ArrivalDate),
				"rent":        rec.Amount,
				"room":        emptyToNil(rec.Room),
				"note":        emptyToNil(rec.Note),
				FieldStatus:   string(plan.DerivePresence(fc.Ref != nil, rec.ArrivalDate, fc.Today)),
			}
			refFields(out, fc)
			return out
		},
		Orphans:     plan.OrphanDelete,
		StatusField: FieldStatus,
	}
}

// PropertiesSpec reconciles the property list. The natural key is the
// canonical property name.
func PropertiesSpec() CollectionSpec {
	return CollectionSpec{
		Name:     constants.Properties,
		KeyField: "name",
		Columns: []normalize.Column{
			{Attr: entity.AttrKey, Field: "name", Headers: []string{"Name", "Property", "宿舍名稱", "物業名稱"}, Required: true},
			{Attr: entity.AttrAmount, Field: "monthlyRent", Headers: []string{"Monthly Rent", "monthly_rent", "monthlyRent", "月租"}, Required: true},
			{Attr: entity.AttrNote, Field: "address", Headers: []string{"Address", "地址"}},
			{Attr: entity.AttrContract, Field: "contractNumber", Headers: []string{"Contract Number", "contract_number", "合約編號"}},
		},
		CanonicalKey: true,
		Fields: func(rec entity.ExternalRecord, _ plan.FieldContext, canon *reference.Canonicalizer) map[string]any {
			return map[string]any{
				"name":           canon.Canonical(rec.Key),
				"monthlyRent":    rec.Amount,
				"address":        emptyToNil(rec.Note),
				"contractNumber": emptyToNil(rec.ContractNumber),
			}
		},
		Orphans: plan.OrphanDelete,
	}
}

// InvoicesSpec reconciles issued invoices against the billing sheet.
func InvoicesSpec() CollectionSpec {
	return CollectionSpec{
		Name:     constants.Invoices,
		KeyField: "invoiceNumber",
		Columns: []normalize.Column{
			{Attr: entity.AttrKey, Field: "invoiceNumber", Headers: []string{"Invoice Number", "invoice_number", "invoiceNumber", "發票號碼"}, Required: true},
			{Attr: entity.AttrName, Field: "tenantName", Headers: []string{"Tenant", "tenant_name", "tenantName", "承租人"}, Required: true},
			{Attr: entity.AttrPeriodStart, Field: "periodStart", Headers: []string{"Period Start", "period_start", "periodStart", "起租日"}, Required: true},
			{Attr: entity.AttrPeriodEnd, Field: "periodEnd", Headers: []string{"Period End", "period_end", "periodEnd", "迄租日"}},
			{Attr: entity.AttrAmount, Field: "amount", Headers: []string{"Amount", "金額"}, Required: true},
			{Attr: entity.AttrReference, Field: FieldPropertyName, Headers: []string{"Property", "property_name", "propertyName", "宿舍", "宿舍名稱"}, Required: true},
			{Attr: entity.AttrContract, Field: "contractNumber", Headers: []string{"Contract Number", "contract_number", "合約編號"}},
		},
		Reference: propertyTarget,
		Fields: func(rec entity.ExternalRecord, fc plan.FieldContext, _ *reference.Canonicalizer) map[string]any {
			out := map[string]any{
				"invoiceNumber":  rec.Key,
				"tenantName":     rec.DisplayName,
				"periodStart":    entity.FormatDate(rec.PeriodStart),
				"periodEnd":      entity.FormatDate(rec.PeriodEnd),
				"amount":         rec.Amount,
				"contractNumber": emptyToNil(rec.ContractNumber),
			}
			refFields(out, fc)
			return out
		},
		Orphans: plan.OrphanDelete,
	}
}

// BuiltinSpecs returns the spec of every known collection.
func BuiltinSpecs() map[constants.Collection]CollectionSpec {
	return map[constants.Collection]CollectionSpec{
		constants.Employees:  EmployeesSpec(),
		constants.Properties: PropertiesSpec(),
		constants.Invoices:   InvoicesSpec(),
	}
}
