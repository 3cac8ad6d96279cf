// Package sym defines the glyphs that tag log lines by subsystem.
// They are logged as the "symbol" field, never inside messages.
package sym

const (
	Pulse      = "꩜" // scheduler ticks, job execution, retries
	PulseOpen  = "✿" // startup
	PulseClose = "❀" // graceful shutdown
	DB         = "⊔" // job database and local quad store
	Export     = "⇪" // snapshot assembly and file export
	Store      = "⋈" // remote SPARQL endpoints
)

// All lists every glyph in a stable order.
var All = []string{Pulse, PulseOpen, PulseClose, DB, Export, Store}
