package errors

import "sort"

// Template defines a registered error type.
type Template struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// ============================================
	// Config Errors (E100-E119)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "No vdiff.json was found in the current directory or any parent directory.",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Config file unreadable",
		Detail:   "vdiff.json could not be read, parsed or written.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid config value",
		Detail:   "A value in vdiff.json is out of range or not one of the allowed choices.",
	},

	// ============================================
	// Notation and Scenario Errors (E200-E219)
	// ============================================

	"E200": {
		Category: CategoryNotation,
		Message:  "Tree notation syntax error",
		Detail:   "Trees are written as space separated nodes: a key or '_', an optional ':tag', and an optional parenthesised child list. Quoted strings are text nodes.",
	},
	"E201": {
		Category: CategoryScenario,
		Message:  "Invalid scenario file",
		Detail:   "The scenario suite could not be decoded or a scenario is missing its name or trees.",
	},
	"E202": {
		Category: CategoryScenario,
		Message:  "Scenario expectation failed",
		Detail:   "The reconciled tree or the primitive counts differ from what the scenario expects.",
	},

	// ============================================
	// Protocol Errors (E300-E319)
	// ============================================

	"E300": {
		Category: CategoryProtocol,
		Message:  "Malformed protocol frame",
		Detail:   "A frame or its payload could not be decoded.",
	},
	"E301": {
		Category: CategoryProtocol,
		Message:  "Unknown session",
		Detail:   "The session ID is invalid or the session has been evicted.",
	},
	"E302": {
		Category: CategoryProtocol,
		Message:  "Resume gap",
		Detail:   "Patches the client missed are no longer in the server's history; a full resync is needed.",
	},

	// ============================================
	// Snapshot Errors (E400-E419)
	// ============================================

	"E400": {
		Category: CategorySnapshot,
		Message:  "Snapshot not found",
		Detail:   "No snapshot with this hash exists in the configured store.",
	},
	"E401": {
		Category: CategorySnapshot,
		Message:  "Snapshot backend failure",
		Detail:   "The snapshot store returned an error.",
	},
}

// Codes returns all registered error codes in order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Lookup returns the template for an error code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template Template) {
	registry[code] = template
}
