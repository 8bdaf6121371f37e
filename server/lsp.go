package server

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/mro/manifest"
	"github.com/chazu/mro/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "mro-lsp"

var log = commonlog.GetLogger("mro.server")

// LspServer provides editor features for mro.toml files. Every open
// document is built into its own VM; all VM access goes through a
// Worker.
type LspServer struct {
	worker *Worker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	// analyses is only touched on the worker goroutine.
	analyses map[string]*analysis

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		worker:   NewWorker(),
		docs:     make(map[string]string),
		analyses: make(map[string]*analysis),
		version:  "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("mro LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"\""},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	s.worker.Do(func() any {
		delete(s.analyses, string(uri))
		return nil
	})

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	uri := params.TextDocument.URI

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}

	return s.worker.Do(func() any {
		a := s.analyses[string(uri)]
		if a == nil {
			return nil
		}
		return a.complete(prefix)
	})
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := params.TextDocument.URI

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	result, err := s.worker.Do(func() any {
		a := s.analyses[string(uri)]
		if a == nil {
			return nil
		}
		return a.hover(word)
	})
	if err != nil {
		return nil, nil
	}
	hover, _ := result.(*protocol.Hover)
	return hover, nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI

	s.mu.Lock()
	text, ok := s.docs[string(uri)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	line := declarationLine(text, word)
	if line < 0 {
		return nil, nil
	}
	return []protocol.Location{{
		URI:   uri,
		Range: lineRange(text, line),
	}}, nil
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	result, err := s.worker.Do(func() any {
		a := analyze(text)
		s.analyses[string(uri)] = a
		return a.diagnostics
	})
	if err != nil {
		log.Errorf("analyzing %s: %v", uri, err)
		return
	}

	diagnostics, _ := result.([]protocol.Diagnostic)
	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// --- Document analysis (worker goroutine only) ---

// analysis is the result of building one document.
type analysis struct {
	text        string
	manifest    *manifest.Manifest // nil when the document does not parse
	vm          *vm.VM             // classes defined before the first failure
	diagnostics []protocol.Diagnostic
}

// analyze parses text as a manifest and builds its classes. Building stops
// at the first failing declaration; classes declared before it stay
// available for hover and completion.
func analyze(text string) *analysis {
	a := &analysis{text: text}

	m, err := manifest.Parse([]byte(text))
	if err != nil {
		a.diagnostics = append(a.diagnostics, a.diagnose(err))
		return a
	}
	a.manifest = m

	a.vm = vm.NewVM()
	a.vm.Heap.SetThreshold(m.Runtime.GCThreshold)
	if err := m.Apply(a.vm); err != nil {
		a.diagnostics = append(a.diagnostics, a.diagnose(err))
	}
	return a
}

// diagnose places err on the line it refers to.
func (a *analysis) diagnose(err error) protocol.Diagnostic {
	rng := lineRange(a.text, 0)

	var parseErr toml.ParseError
	var declErr *manifest.DeclError
	switch {
	case errors.As(err, &parseErr):
		line := parseErr.Position.Line - 1
		col := parseErr.Position.Col - 1
		if line < 0 {
			line = 0
		}
		if col < 0 {
			col = 0
		}
		rng = protocol.Range{
			Start: protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)},
			End:   protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col + max(parseErr.Position.Len, 1))},
		}
		err = errors.New(parseErr.Message)
	case errors.As(err, &declErr):
		if line := declarationLine(a.text, declErr.Class); line >= 0 {
			rng = lineRange(a.text, line)
		}
	}

	severity := protocol.DiagnosticSeverityError
	source := lspName
	return protocol.Diagnostic{
		Range:    rng,
		Severity: &severity,
		Source:   &source,
		Message:  err.Error(),
	}
}

func (a *analysis) complete(prefix string) []protocol.CompletionItem {
	if a.vm == nil {
		return nil
	}

	var items []protocol.CompletionItem
	lowerPrefix := strings.ToLower(prefix)

	// Class names
	methods := make(map[string]bool)
	for _, cls := range a.vm.Classes.All() {
		for _, name := range cls.Methods() {
			methods[name] = true
		}
		if !strings.HasPrefix(strings.ToLower(cls.Name()), lowerPrefix) {
			continue
		}
		kind := protocol.CompletionItemKindClass
		detail := "class"
		if parents := cls.Parents(); len(parents) > 0 {
			detail = fmt.Sprintf("class (< %s)", strings.Join(classNames(parents), ", "))
		}
		name := cls.Name()
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &name,
		})
	}

	// Method names
	names := make([]string, 0, len(methods))
	for name := range methods {
		if strings.HasPrefix(strings.ToLower(name), lowerPrefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		kind := protocol.CompletionItemKindMethod
		detail := "method"
		nameCopy := name
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &nameCopy,
		})
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

func (a *analysis) hover(word string) *protocol.Hover {
	if a.vm == nil {
		return nil
	}

	var b strings.Builder
	if cls := a.vm.Classes.Lookup(word); cls != nil {
		fmt.Fprintf(&b, "**%s**", cls.Name())
		if parents := cls.Parents(); len(parents) > 0 {
			fmt.Fprintf(&b, " < %s", strings.Join(classNames(parents), ", "))
		}
		b.WriteString("\n\n")

		fmt.Fprintf(&b, "**Linearization:** %s\n\n", strings.Join(classNames(cls.Linearization()), " → "))

		if methods := cls.Methods(); len(methods) > 0 {
			fmt.Fprintf(&b, "Methods: `%s`", strings.Join(methods, "` `"))
		} else {
			b.WriteString("No local methods")
		}
	} else {
		var implementors []string
		for _, cls := range a.vm.Classes.All() {
			if cls.HasMethod(word) {
				implementors = append(implementors, cls.Name())
			}
		}
		if len(implementors) == 0 {
			return nil
		}
		fmt.Fprintf(&b, "**%s**\n\n", word)
		fmt.Fprintf(&b, "Implemented by %d classes:\n", len(implementors))
		for _, name := range implementors {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func classNames(classes []*vm.Class) []string {
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = c.Name()
	}
	return names
}

// --- Text extraction helpers ---

// declarationLine returns the zero-based line of the `name = "class"`
// entry declaring class, or -1.
func declarationLine(text, class string) int {
	quoted := strconv.Quote(class)
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(line, "name")
		if !ok {
			continue
		}
		rest, ok = strings.CutPrefix(strings.TrimSpace(rest), "=")
		if !ok {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(rest), quoted) {
			return i
		}
	}
	return -1
}

// lineRange spans the whole of the given line.
func lineRange(text string, line int) protocol.Range {
	lines := strings.Split(text, "\n")
	end := 0
	if line < len(lines) {
		end = len(lines[line])
	}
	return protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(line), Character: 0},
		End:   protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(end)},
	}
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}

	end := col
	for end < len(line) && isIdentChar(rune(line[end])) {
		end++
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func isIdentChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

func boolPtr(b bool) *bool {
	return &b
}
