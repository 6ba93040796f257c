package catalog

// FilterFunc returns true when a session id should be kept.
type FilterFunc func(string) bool

// KeepAll keeps every id.
func KeepAll(string) bool { return true }

// FilterFor returns the filter for a validation mode: "uuid" keeps only
// canonical ids, anything else keeps everything.
func FilterFor(mode string) FilterFunc {
	switch mode {
	case "uuid":
		return ValidEID
	default:
		return KeepAll
	}
}
