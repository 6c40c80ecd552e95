// Package lsp is a language server for program documents (.yaml, .yml,
// .json). It reports assembly and schema errors as diagnostics and
// offers completion, hover and go-to-definition for opcodes, nodes and
// line IDs.
package lsp

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/yarnvm/pkg/bytecode"
)

const lspName = "yarn-lsp"

var log = commonlog.GetLogger("yarn.lsp")

// Server bridges editor features to program documents.
type Server struct {
	mu   sync.Mutex
	docs map[string]*document // URI → latest text and parse

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// New creates a language server.
func New(version string) *Server {
	s := &Server{
		docs:    make(map[string]*document),
		version: version,
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

// RunStdio serves on stdin/stdout until the client disconnects.
func (s *Server) RunStdio() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"[", " ", ":"},
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

func (s *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *Server) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	doc := s.update(string(params.TextDocument.URI), params.TextDocument.Text)
	s.publishDiagnostics(ctx, params.TextDocument.URI, doc)
	return nil
}

func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			doc := s.update(string(uri), whole.Text)
			s.publishDiagnostics(ctx, uri, doc)
		}
	}
	return nil
}

func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// update reparses text and stores it under uri. A document that fails to
// parse keeps the last good program for completion and hover.
func (s *Server) update(uri, text string) *document {
	doc := parseDocument(uri, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.program == nil {
		if prev, ok := s.docs[uri]; ok {
			doc.program = prev.program
		}
	}
	s.docs[uri] = doc
	return doc
}

func (s *Server) lookup(uri protocol.DocumentUri) (*document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[string(uri)]
	return doc, ok
}

func (s *Server) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, doc *document) {
	diagnostics := doc.diagnostics()
	log.Debugf("%s: %d diagnostics", uri, len(diagnostics))
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// --- Language features ---

func (s *Server) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc, ok := s.lookup(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return doc.complete(extractPrefix(doc.text, params.Position)), nil
}

func (s *Server) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc, ok := s.lookup(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	return doc.hover(word), nil
}

func (s *Server) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	doc, ok := s.lookup(uri)
	if !ok {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	line, ok := doc.definitionLine(word)
	if !ok {
		return nil, nil
	}
	return []protocol.Location{{URI: uri, Range: lineRange(line)}}, nil
}

// ---------------------------------------------------------------------------
// Completion and hover
// ---------------------------------------------------------------------------

const maxCompletionItems = 100

func (d *document) complete(prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	lowerPrefix := strings.ToLower(prefix)

	add := func(label, detail string, kind protocol.CompletionItemKind) {
		if !strings.HasPrefix(strings.ToLower(label), lowerPrefix) {
			return
		}
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &label,
		})
	}

	for _, name := range opcodeNames() {
		add(name, "opcode", protocol.CompletionItemKindKeyword)
	}
	if d.program != nil {
		for _, name := range d.program.NodeNames() {
			add(name, "node", protocol.CompletionItemKindModule)
		}
		for _, id := range sortedKeys(d.program.Strings) {
			add(id, "line", protocol.CompletionItemKindText)
		}
	}

	if len(items) > maxCompletionItems {
		items = items[:maxCompletionItems]
	}
	return items
}

func (d *document) hover(word string) *protocol.Hover {
	var b strings.Builder

	if op, ok := opcodeNamed(word); ok {
		info := bytecode.GetOpcodeInfo(op)
		fmt.Fprintf(&b, "**%s** (0x%02X)\n\n", info.Name, byte(op))
		fmt.Fprintf(&b, "Operands: `%s`\n\n", operandSignature(info))
		if info.StackPop < 0 {
			b.WriteString("Pops a variable number of values")
		} else {
			fmt.Fprintf(&b, "Pops %d", info.StackPop)
		}
		fmt.Fprintf(&b, ", pushes %d", info.StackPush)
		if op.IsSuspension() {
			b.WriteString("\n\nSuspends the VM.")
		}
		return markdown(b.String())
	}

	if d.program == nil {
		return nil
	}
	if n, err := d.program.Node(word); err == nil {
		fmt.Fprintf(&b, "**node %s**\n\n", n.Name)
		fmt.Fprintf(&b, "%d instructions", len(n.Instructions))
		if len(n.Tags) > 0 {
			fmt.Fprintf(&b, "\n\nTags: `%s`", strings.Join(n.Tags, " "))
		}
		if len(n.Labels) > 0 {
			fmt.Fprintf(&b, "\n\nLabels: `%s`", strings.Join(sortedKeys(n.Labels), " "))
		}
		return markdown(b.String())
	}
	if text, ok := d.program.LineTemplate(word); ok {
		fmt.Fprintf(&b, "**%s**\n\n%s", word, text)
		return markdown(b.String())
	}
	return nil
}

func opcodeNames() []string {
	var names []string
	for _, op := range bytecode.AllOpcodes() {
		names = append(names, op.String())
	}
	sort.Strings(names)
	return names
}

// opcodeNamed matches opcode names exactly, so that a node called "stop"
// hovers as the node.
func opcodeNamed(word string) (bytecode.Opcode, bool) {
	op, err := bytecode.ParseOpcode(word)
	if err != nil || (op.String() != word && word != "Return") {
		return 0, false
	}
	return op, true
}

func operandSignature(info bytecode.OpcodeInfo) string {
	var parts []string
	for _, k := range info.Required {
		parts = append(parts, k.String())
	}
	for _, k := range info.Optional {
		parts = append(parts, k.String()+"?")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func markdown(s string) *protocol.Hover {
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: s,
		},
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func boolPtr(b bool) *bool {
	return &b
}
