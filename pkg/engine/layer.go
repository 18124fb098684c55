package engine

import (
	"strings"

	"github.com/Sumatoshi-tech/newpr-stack/pkg/symflow"
)

// layerOrder fixes the total ordering used both for the layer-bonus
// adjacency check and as a tie-break hint: schema < codegen < refactor <
// core < integration < ui < test < unknown.
var layerOrder = []Layer{
	LayerSchema, LayerCodegen, LayerRefactor, LayerCore,
	LayerIntegration, LayerUI, LayerTest, LayerUnknown,
}

func layerIndex(l Layer) int {
	for i, candidate := range layerOrder {
		if candidate == l {
			return i
		}
	}

	return len(layerOrder) - 1
}

// classifyLayer is a rule-based classifier over path shape, consulted
// before any symbol-shape signal since path conventions are the stronger
// predictor in practice. Rules are checked in priority order; the first
// match wins.
func classifyLayer(path string, rec symflow.Record) Layer {
	lower := strings.ToLower(path)

	switch {
	case containsAny(lower, "/migrations/", "/schema/", ".sql", ".proto"):
		return LayerSchema
	case containsAny(lower, "generated", ".gen.", "/gen/", ".pb.go", "_pb2"):
		return LayerCodegen
	case containsAny(lower, "_test.", ".test.", ".spec.", "/test/", "/tests/", "/__tests__/"):
		return LayerTest
	case containsAny(lower, "/ui/", "/components/", "/views/", ".tsx", ".css", ".scss"):
		return LayerUI
	case containsAny(lower, "/api/", "/handlers/", "/routes/", "/controllers/", "/integration/"):
		return LayerIntegration
	case containsAny(lower, "/core/", "/internal/", "/domain/", "/pkg/"):
		return LayerCore
	case containsAny(lower, "/refactor/"):
		return LayerRefactor
	}

	if isPureSymbolShuffle(rec) {
		return LayerRefactor
	}

	return LayerUnknown
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}

	return false
}

// isPureSymbolShuffle approximates "refactor" symbol shape: a file that
// re-exports names without introducing any new import edges reads as
// plumbing rather than new functionality.
func isPureSymbolShuffle(rec symflow.Record) bool {
	return len(rec.Exports) > 0 && len(rec.Imports) == 0
}
