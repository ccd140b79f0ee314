package logging

// Glyphs used as structured log fields (key "symbol") to make startup,
// shutdown, and queue activity visually distinct in the console encoder and
// grep-able in JSON output. Plain string constants — no generated registry,
// there's no UI palette or command binding to drive here.
const (
	SymbolQueueOpen  = "✿" // graceful startup, orphaned-run recovery
	SymbolQueueClose = "❀" // graceful shutdown, in-flight drain
	SymbolQueue      = "꩜" // routine queue/worker activity
	SymbolDB         = "⊔" // storage layer
)

const FieldSymbol = "symbol"
