package constants

import "strings"

// AllowedExtensions holds the spreadsheet formats accepted as reconciliation input.
var AllowedExtensions = map[string]struct{}{
	"xlsx": {},
	"xlsm": {},
	"csv":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
