package constants

// DefaultAliasTable maps known legacy spellings of property names to their
// canonical spelling. Lookups are case-insensitive after width folding.
var DefaultAliasTable = map[string]string{
	"东海":   "東海",
	"東海宿舍": "東海",
	"东海宿舍": "東海",
	"台中":   "臺中",
	"台北":   "臺北",
	"台南":   "臺南",
	"台东":   "臺東",
	"台東":   "臺東",
	"新竹宿舍": "新竹",
	"桃园":   "桃園",
	"龙潭":   "龍潭",
}
