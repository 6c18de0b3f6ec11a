package constants

import (
	"strings"
)

// Collection names a document collection in the store.
type Collection string

const (
	Employees  Collection = "employees"
	Properties Collection = "properties"
	Invoices   Collection = "invoices"
)

var allCollections = []Collection{
	Employees,
	Properties,
	Invoices,
}

func AsStringSlice() []string {
	result := make([]string, len(allCollections))
	for i, c := range allCollections {
		result[i] = string(c)
	}
	return result
}

// ParseCollection accepts the collection name in any case, plus a few
// singular/Chinese synonyms used by operators.
func ParseCollection(input string) (Collection, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]Collection{
		"employee": Employees,
		"tenants":  Employees,
		"員工":     Employees,
		"property": Properties,
		"dorms":    Properties,
		"宿舍":     Properties,
		"invoice":  Invoices,
		"發票":     Invoices,
	}
	if c, ok := synonyms[normalized]; ok {
		return c, true
	}

	for _, c := range allCollections {
		if normalized == string(c) {
			return c, true
		}
	}
	return "", false
}
