package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

const shapesDoc = `[project]
name = "shapes"

[[class]]
name = "Base"
methods = ["foo", "describe"]

[[class]]
name = "Left"
parents = ["Base"]
methods = ["foo"]

[[class]]
name = "Right"
parents = ["Base"]
methods = ["foo"]

[[class]]
name = "Child"
parents = ["Left", "Right"]
`

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix_SimpleWord(t *testing.T) {
	text := `parents = ["Le`
	pos := protocol.Position{Line: 0, Character: 14}
	prefix := extractPrefix(text, pos)
	if prefix != "Le" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "Le")
	}
}

func TestExtractPrefix_MultiLine(t *testing.T) {
	text := "first line\nsecond line\nBas"
	pos := protocol.Position{Line: 2, Character: 3}
	prefix := extractPrefix(text, pos)
	if prefix != "Bas" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "Bas")
	}
}

func TestExtractPrefix_CursorAtBeginning(t *testing.T) {
	text := "hello"
	pos := protocol.Position{Line: 0, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix at position 0 = %q, want empty string", prefix)
	}
}

func TestExtractPrefix_LineBeyondDocument(t *testing.T) {
	text := "single line"
	pos := protocol.Position{Line: 5, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix beyond doc = %q, want empty string", prefix)
	}
}

func TestExtractWord_InsideQuotes(t *testing.T) {
	text := `parents = ["Left", "Right"]`
	pos := protocol.Position{Line: 0, Character: 14}
	word := extractWord(text, pos)
	if word != "Left" {
		t.Errorf("extractWord = %q, want %q", word, "Left")
	}
}

func TestExtractWord_AtEnd(t *testing.T) {
	text := "hello world"
	pos := protocol.Position{Line: 0, Character: 5}
	word := extractWord(text, pos)
	if word != "hello" {
		t.Errorf("extractWord = %q, want %q", word, "hello")
	}
}

func TestExtractWord_WithUnderscore(t *testing.T) {
	text := "my_method rest"
	pos := protocol.Position{Line: 0, Character: 4}
	word := extractWord(text, pos)
	if word != "my_method" {
		t.Errorf("extractWord = %q, want %q", word, "my_method")
	}
}

func TestExtractWord_EmptyLine(t *testing.T) {
	text := "\n"
	pos := protocol.Position{Line: 0, Character: 0}
	if word := extractWord(text, pos); word != "" {
		t.Errorf("extractWord on empty line = %q, want empty string", word)
	}
}

func TestDeclarationLine(t *testing.T) {
	tests := []struct {
		class string
		want  int
	}{
		{"Base", 4},
		{"Child", 18},
		{"shapes", 1},
		{"Missing", -1},
	}
	for _, tt := range tests {
		if got := declarationLine(shapesDoc, tt.class); got != tt.want {
			t.Errorf("declarationLine(%s) = %d, want %d", tt.class, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestAnalyze_Clean(t *testing.T) {
	a := analyze(shapesDoc)
	if len(a.diagnostics) != 0 {
		t.Fatalf("diagnostics = %v, want none", a.diagnostics)
	}
	if a.vm.Classes.Len() != 4 {
		t.Errorf("classes = %d, want 4", a.vm.Classes.Len())
	}
}

func TestAnalyze_SyntaxError(t *testing.T) {
	a := analyze("[project]\nname = \"x\"\n[[class]\n")
	if len(a.diagnostics) != 1 {
		t.Fatalf("diagnostics = %v, want 1", a.diagnostics)
	}
	if a.vm != nil {
		t.Error("no VM should be built for an unparsable document")
	}
	if line := a.diagnostics[0].Range.Start.Line; line != 2 {
		t.Errorf("diagnostic line = %d, want 2", line)
	}
}

func TestAnalyze_InconsistentHierarchy(t *testing.T) {
	doc := `[[class]]
name = "X"
[[class]]
name = "Y"
[[class]]
name = "A"
parents = ["X", "Y"]
[[class]]
name = "B"
parents = ["Y", "X"]
[[class]]
name = "C"
parents = ["A", "B"]
`
	a := analyze(doc)
	if len(a.diagnostics) != 1 {
		t.Fatalf("diagnostics = %v, want 1", a.diagnostics)
	}
	d := a.diagnostics[0]
	if d.Range.Start.Line != 11 {
		t.Errorf("diagnostic line = %d, want 11 (name = \"C\")", d.Range.Start.Line)
	}
	if !strings.Contains(d.Message, "inconsistent_hierarchy") {
		t.Errorf("message = %q, want an inconsistent hierarchy error", d.Message)
	}
	if a.vm == nil || a.vm.Classes.Lookup("B") == nil {
		t.Error("classes declared before the failure should stay available")
	}
}

func TestAnalyze_ForwardReference(t *testing.T) {
	doc := "[[class]]\nname = \"B\"\nparents = [\"A\"]\n"
	a := analyze(doc)
	if len(a.diagnostics) != 1 || a.diagnostics[0].Range.Start.Line != 1 {
		t.Errorf("diagnostics = %v, want one on line 1", a.diagnostics)
	}
}

// ---------------------------------------------------------------------------
// Hover and completion
// ---------------------------------------------------------------------------

func TestHover_ClassName(t *testing.T) {
	a := analyze(shapesDoc)
	hover := a.hover("Child")
	if hover == nil {
		t.Fatal("hover for Child should not be nil")
	}
	content := hover.Contents.(protocol.MarkupContent)
	if !strings.Contains(content.Value, "**Child** < Left, Right") {
		t.Errorf("hover = %q, want parents listed", content.Value)
	}
	if !strings.Contains(content.Value, "Child → Left → Right → Base") {
		t.Errorf("hover = %q, want the linearization", content.Value)
	}
}

func TestHover_MethodName(t *testing.T) {
	a := analyze(shapesDoc)
	hover := a.hover("foo")
	if hover == nil {
		t.Fatal("hover for foo should not be nil")
	}
	content := hover.Contents.(protocol.MarkupContent)
	if !strings.Contains(content.Value, "Implemented by 3 classes") {
		t.Errorf("hover = %q, want 3 implementors", content.Value)
	}
}

func TestHover_UnknownWord(t *testing.T) {
	a := analyze(shapesDoc)
	if hover := a.hover("zzz"); hover != nil {
		t.Errorf("hover for unknown word = %v, want nil", hover)
	}
}

func TestComplete(t *testing.T) {
	a := analyze(shapesDoc)

	items := a.complete("Ba")
	if len(items) != 1 || items[0].Label != "Base" {
		t.Errorf("complete(Ba) = %v, want [Base]", labels(items))
	}

	items = a.complete("d")
	if len(items) != 1 || items[0].Label != "describe" {
		t.Errorf("complete(d) = %v, want [describe]", labels(items))
	}
	if *items[0].Kind != protocol.CompletionItemKindMethod {
		t.Errorf("describe kind = %v, want method", *items[0].Kind)
	}
}

func labels(items []protocol.CompletionItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Label
	}
	return out
}

func TestBoolPtr(t *testing.T) {
	if p := boolPtr(true); p == nil || !*p {
		t.Error("boolPtr(true) should point to true")
	}
}
