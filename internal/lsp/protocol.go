package lsp

import (
	"encoding/json"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

// DocumentURI represents a URI as used in LSP.
// It is typically a file:// URI.
type DocumentURI string

// Position in a text document expressed as zero-based line and character offset.
// Character offset is measured in UTF-16 code units per the LSP specification.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range in a text document expressed as start and end positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location represents a location inside a resource.
type Location struct {
	URI   DocumentURI `json:"uri"`
	Range Range       `json:"range"`
}

// TextDocumentIdentifier identifies a text document.
type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

// VersionedTextDocumentIdentifier identifies a specific version of a text document.
type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier
	Version int `json:"version"`
}

// TextDocumentItem is an item to transfer a text document from the client to the server.
type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int         `json:"version"`
	Text       string      `json:"text"`
}

// TextDocumentContentChangeEvent describes a content change event. skiff
// always sends full-document changes, so Range is left nil.
type TextDocumentContentChangeEvent struct {
	Range       *Range `json:"range,omitempty"`
	RangeLength int    `json:"rangeLength,omitempty"`
	Text        string `json:"text"`
}

// WorkspaceFolder represents a workspace folder.
type WorkspaceFolder struct {
	URI  DocumentURI `json:"uri"`
	Name string      `json:"name"`
}

// --- Initialize ---

// ClientInfo identifies the client to the server.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializeParams are the parameters sent in an initialize request.
type InitializeParams struct {
	ProcessID             int                `json:"processId"`
	ClientInfo            *ClientInfo        `json:"clientInfo,omitempty"`
	RootURI               DocumentURI        `json:"rootUri,omitempty"`
	RootPath              string             `json:"rootPath,omitempty"`
	Capabilities          ClientCapabilities `json:"capabilities"`
	InitializationOptions any                `json:"initializationOptions,omitempty"`
	WorkspaceFolders      []WorkspaceFolder  `json:"workspaceFolders,omitempty"`
	Trace                 string             `json:"trace,omitempty"`
}

// InitializeResult is the result of the initialize request.
type InitializeResult struct {
	Capabilities ServerCapabilities    `json:"capabilities"`
	ServerInfo   *InitializeServerInfo `json:"serverInfo,omitempty"`
}

// InitializeServerInfo contains information about the language server from initialization.
type InitializeServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializedParams are the parameters sent in an initialized notification.
type InitializedParams struct{}

// --- Capabilities ---

// ClientCapabilities define capabilities the editor provides on the client side.
// Only the surface skiff actually consumes is advertised.
type ClientCapabilities struct {
	Workspace    *WorkspaceClientCapabilities    `json:"workspace,omitempty"`
	TextDocument *TextDocumentClientCapabilities `json:"textDocument,omitempty"`
	Window       *WindowClientCapabilities       `json:"window,omitempty"`
	General      *GeneralClientCapabilities      `json:"general,omitempty"`
}

// WorkspaceClientCapabilities define capabilities the editor provides on the workspace.
type WorkspaceClientCapabilities struct {
	WorkspaceFolders bool `json:"workspaceFolders,omitempty"`
}

// TextDocumentClientCapabilities define capabilities for text documents.
type TextDocumentClientCapabilities struct {
	Synchronization    *TextDocumentSyncClientCapabilities   `json:"synchronization,omitempty"`
	PublishDiagnostics *PublishDiagnosticsClientCapabilities `json:"publishDiagnostics,omitempty"`
	Diagnostic         *DiagnosticClientCapabilities         `json:"diagnostic,omitempty"`
	InlayHint          *InlayHintClientCapabilities          `json:"inlayHint,omitempty"`
	FoldingRange       *FoldingRangeClientCapabilities       `json:"foldingRange,omitempty"`
}

// TextDocumentSyncClientCapabilities define capabilities for text document sync.
type TextDocumentSyncClientCapabilities struct {
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`
	WillSave            bool `json:"willSave,omitempty"`
	WillSaveWaitUntil   bool `json:"willSaveWaitUntil,omitempty"`
	DidSave             bool `json:"didSave,omitempty"`
}

// PublishDiagnosticsClientCapabilities define capabilities for pushed diagnostics.
type PublishDiagnosticsClientCapabilities struct {
	RelatedInformation     bool                  `json:"relatedInformation,omitempty"`
	TagSupport             *DiagnosticTagSupport `json:"tagSupport,omitempty"`
	VersionSupport         bool                  `json:"versionSupport,omitempty"`
	CodeDescriptionSupport bool                  `json:"codeDescriptionSupport,omitempty"`
	DataSupport            bool                  `json:"dataSupport,omitempty"`
}

// DiagnosticClientCapabilities define capabilities for pulled diagnostics.
type DiagnosticClientCapabilities struct {
	DynamicRegistration    bool `json:"dynamicRegistration,omitempty"`
	RelatedDocumentSupport bool `json:"relatedDocumentSupport,omitempty"`
}

// InlayHintClientCapabilities define capabilities for inlay hints.
type InlayHintClientCapabilities struct {
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`
}

// FoldingRangeClientCapabilities define capabilities for folding ranges.
type FoldingRangeClientCapabilities struct {
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`
	RangeLimit          int  `json:"rangeLimit,omitempty"`
	LineFoldingOnly     bool `json:"lineFoldingOnly,omitempty"`
}

// DiagnosticTagSupport define diagnostic tag support.
type DiagnosticTagSupport struct {
	ValueSet []DiagnosticTag `json:"valueSet,omitempty"`
}

// WindowClientCapabilities define capabilities for the window.
type WindowClientCapabilities struct {
	WorkDoneProgress bool `json:"workDoneProgress,omitempty"`
}

// GeneralClientCapabilities define general client capabilities.
type GeneralClientCapabilities struct {
	PositionEncodings []string `json:"positionEncodings,omitempty"`
}

// ServerCapabilities define capabilities provided by the server. Fields the
// client never consults are dropped during unmarshal.
type ServerCapabilities struct {
	PositionEncoding     string `json:"positionEncoding,omitempty"`
	TextDocumentSync     any    `json:"textDocumentSync,omitempty"`
	DiagnosticProvider   any    `json:"diagnosticProvider,omitempty"`
	InlayHintProvider    any    `json:"inlayHintProvider,omitempty"`
	FoldingRangeProvider any    `json:"foldingRangeProvider,omitempty"`
}

// --- Document Sync ---

// DidOpenTextDocumentParams are parameters for textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidChangeTextDocumentParams are parameters for textDocument/didChange.
type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// DidCloseTextDocumentParams are parameters for textDocument/didClose.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// TextDocumentSyncKind defines how the server wants to sync.
type TextDocumentSyncKind int

const (
	TextDocumentSyncKindNone        TextDocumentSyncKind = 0
	TextDocumentSyncKindFull        TextDocumentSyncKind = 1
	TextDocumentSyncKindIncremental TextDocumentSyncKind = 2
)

// --- Diagnostics ---

// PublishDiagnosticsParams are parameters for textDocument/publishDiagnostics.
type PublishDiagnosticsParams struct {
	URI         DocumentURI  `json:"uri"`
	Version     int          `json:"version,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Diagnostic represents a diagnostic (error, warning, info, hint).
type Diagnostic struct {
	Range              Range                          `json:"range"`
	Severity           DiagnosticSeverity             `json:"severity,omitempty"`
	Code               any                            `json:"code,omitempty"` // string or number
	CodeDescription    *CodeDescription               `json:"codeDescription,omitempty"`
	Source             string                         `json:"source,omitempty"`
	Message            string                         `json:"message"`
	Tags               []DiagnosticTag                `json:"tags,omitempty"`
	RelatedInformation []DiagnosticRelatedInformation `json:"relatedInformation,omitempty"`
	Data               any                            `json:"data,omitempty"`
}

// DiagnosticSeverity represents the severity of a diagnostic.
type DiagnosticSeverity int

const (
	DiagnosticSeverityError       DiagnosticSeverity = 1
	DiagnosticSeverityWarning     DiagnosticSeverity = 2
	DiagnosticSeverityInformation DiagnosticSeverity = 3
	DiagnosticSeverityHint        DiagnosticSeverity = 4
)

// String returns a one-letter marker used in list views.
func (s DiagnosticSeverity) String() string {
	switch s {
	case DiagnosticSeverityError:
		return "E"
	case DiagnosticSeverityWarning:
		return "W"
	case DiagnosticSeverityInformation:
		return "I"
	case DiagnosticSeverityHint:
		return "H"
	default:
		return "?"
	}
}

// DiagnosticTag represents additional metadata about a diagnostic.
type DiagnosticTag int

const (
	DiagnosticTagUnnecessary DiagnosticTag = 1
	DiagnosticTagDeprecated  DiagnosticTag = 2
)

// CodeDescription describes a code.
type CodeDescription struct {
	Href string `json:"href"`
}

// DiagnosticRelatedInformation represents related diagnostic information.
type DiagnosticRelatedInformation struct {
	Location Location `json:"location"`
	Message  string   `json:"message"`
}

// --- Pull Diagnostics ---

// DocumentDiagnosticParams are parameters for textDocument/diagnostic.
type DocumentDiagnosticParams struct {
	TextDocument     TextDocumentIdentifier `json:"textDocument"`
	Identifier       string                 `json:"identifier,omitempty"`
	PreviousResultID string                 `json:"previousResultId,omitempty"`
}

// DocumentDiagnosticReportKind discriminates full from unchanged reports.
type DocumentDiagnosticReportKind string

const (
	DiagnosticReportFull      DocumentDiagnosticReportKind = "full"
	DiagnosticReportUnchanged DocumentDiagnosticReportKind = "unchanged"
)

// DocumentDiagnosticReport is the result of a textDocument/diagnostic pull.
// An unchanged report carries only the result id the client already has.
type DocumentDiagnosticReport struct {
	Kind     DocumentDiagnosticReportKind `json:"kind"`
	ResultID string                       `json:"resultId,omitempty"`
	Items    []Diagnostic                 `json:"items,omitempty"`
}

// --- Inlay Hints ---

// InlayHintParams are parameters for textDocument/inlayHint.
type InlayHintParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Range        Range                  `json:"range"`
}

// InlayHintKind represents the kind of an inlay hint.
type InlayHintKind int

const (
	InlayHintKindType      InlayHintKind = 1
	InlayHintKindParameter InlayHintKind = 2
)

// InlayHintLabelPart is one piece of a structured inlay hint label.
type InlayHintLabelPart struct {
	Value    string    `json:"value"`
	Tooltip  any       `json:"tooltip,omitempty"`
	Location *Location `json:"location,omitempty"`
}

// InlayHintLabel is a string or a list of label parts on the wire. It always
// unmarshals to the parts form; Text flattens it back.
type InlayHintLabel []InlayHintLabelPart

// UnmarshalJSON accepts both wire encodings of an inlay hint label.
func (l *InlayHintLabel) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = InlayHintLabel{{Value: s}}
		return nil
	}
	var parts []InlayHintLabelPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	*l = InlayHintLabel(parts)
	return nil
}

// Text returns the concatenated label text.
func (l InlayHintLabel) Text() string {
	var b strings.Builder
	for _, p := range l {
		b.WriteString(p.Value)
	}
	return b.String()
}

// InlayHint represents an inline annotation anchored to a position.
type InlayHint struct {
	Position     Position       `json:"position"`
	Label        InlayHintLabel `json:"label"`
	Kind         InlayHintKind  `json:"kind,omitempty"`
	Tooltip      any            `json:"tooltip,omitempty"`
	PaddingLeft  bool           `json:"paddingLeft,omitempty"`
	PaddingRight bool           `json:"paddingRight,omitempty"`
	Data         any            `json:"data,omitempty"`
}

// --- Folding Ranges ---

// FoldingRangeParams are parameters for textDocument/foldingRange.
type FoldingRangeParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// FoldingRangeKind represents the kind of a folding range.
type FoldingRangeKind string

const (
	FoldingRangeKindComment FoldingRangeKind = "comment"
	FoldingRangeKindImports FoldingRangeKind = "imports"
	FoldingRangeKindRegion  FoldingRangeKind = "region"
)

// FoldingRange represents a foldable span of lines.
type FoldingRange struct {
	StartLine      int              `json:"startLine"`
	StartCharacter *int             `json:"startCharacter,omitempty"`
	EndLine        int              `json:"endLine"`
	EndCharacter   *int             `json:"endCharacter,omitempty"`
	Kind           FoldingRangeKind `json:"kind,omitempty"`
	CollapsedText  string           `json:"collapsedText,omitempty"`
}

// --- Window ---

// MessageType classifies window/showMessage and window/logMessage traffic.
type MessageType int

const (
	MessageTypeError   MessageType = 1
	MessageTypeWarning MessageType = 2
	MessageTypeInfo    MessageType = 3
	MessageTypeLog     MessageType = 4
	MessageTypeDebug   MessageType = 5
)

// ShowMessageParams are parameters for window/showMessage.
type ShowMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// LogMessageParams are parameters for window/logMessage.
type LogMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// --- Cancellation ---

// CancelParams are parameters for the $/cancelRequest notification.
type CancelParams struct {
	ID int64 `json:"id"`
}

// --- Utility Functions ---

// FilePathToURI converts a file path to a DocumentURI.
func FilePathToURI(path string) DocumentURI {
	if path == "" {
		return ""
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	path = filepath.ToSlash(path)

	// On Windows, add extra slash for drive letter
	if runtime.GOOS == "windows" && len(path) >= 2 && path[1] == ':' {
		path = "/" + path
	}

	u := &url.URL{
		Scheme: "file",
		Path:   path,
	}
	return DocumentURI(u.String())
}

// URIToFilePath converts a DocumentURI to a file path.
func URIToFilePath(uri DocumentURI) string {
	if uri == "" {
		return ""
	}

	u, err := url.Parse(string(uri))
	if err != nil {
		return string(uri)
	}
	if u.Scheme != "file" {
		return string(uri)
	}

	path := u.Path

	// On Windows, remove leading slash before drive letter
	if runtime.GOOS == "windows" && len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}

	return filepath.FromSlash(path)
}

// GetTextDocumentSyncKind extracts the sync kind from server capabilities.
func GetTextDocumentSyncKind(caps ServerCapabilities) TextDocumentSyncKind {
	if caps.TextDocumentSync == nil {
		return TextDocumentSyncKindNone
	}

	// It can be a number or an object
	switch v := caps.TextDocumentSync.(type) {
	case float64:
		return TextDocumentSyncKind(int(v))
	case int:
		return TextDocumentSyncKind(v)
	case map[string]any:
		if change, ok := v["change"].(float64); ok {
			return TextDocumentSyncKind(int(change))
		}
	}

	return TextDocumentSyncKindFull
}

// HasCapability checks if a capability is enabled (can be bool or object).
func HasCapability(cap any) bool {
	if cap == nil {
		return false
	}
	switch v := cap.(type) {
	case bool:
		return v
	default:
		return true
	}
}

// DefaultClientCapabilities returns the capabilities skiff advertises.
func DefaultClientCapabilities() ClientCapabilities {
	return ClientCapabilities{
		Workspace: &WorkspaceClientCapabilities{
			WorkspaceFolders: true,
		},
		TextDocument: &TextDocumentClientCapabilities{
			Synchronization: &TextDocumentSyncClientCapabilities{
				DidSave: true,
			},
			PublishDiagnostics: &PublishDiagnosticsClientCapabilities{
				RelatedInformation: true,
				TagSupport: &DiagnosticTagSupport{
					ValueSet: []DiagnosticTag{DiagnosticTagUnnecessary, DiagnosticTagDeprecated},
				},
				VersionSupport:         true,
				CodeDescriptionSupport: true,
				DataSupport:            true,
			},
			Diagnostic: &DiagnosticClientCapabilities{},
			InlayHint:  &InlayHintClientCapabilities{},
			FoldingRange: &FoldingRangeClientCapabilities{
				LineFoldingOnly: true,
			},
		},
		Window: &WindowClientCapabilities{},
		General: &GeneralClientCapabilities{
			PositionEncodings: []string{"utf-16"},
		},
	}
}

// DetectLanguageID returns the LSP language ID for a file path.
func DetectLanguageID(path string) string {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".go":
		return "go"
	case ".rs":
		return "rust"
	case ".ts":
		return "typescript"
	case ".tsx":
		return "typescriptreact"
	case ".js":
		return "javascript"
	case ".jsx":
		return "javascriptreact"
	case ".py":
		return "python"
	case ".c":
		return "c"
	case ".cpp", ".cc", ".cxx", ".h", ".hpp":
		return "cpp"
	case ".zig":
		return "zig"
	case ".lua":
		return "lua"
	case ".sh", ".bash":
		return "shellscript"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".md", ".markdown":
		return "markdown"
	default:
		base := strings.ToLower(filepath.Base(path))
		switch base {
		case "dockerfile":
			return "dockerfile"
		case "makefile", "gnumakefile":
			return "makefile"
		}
		return "plaintext"
	}
}
