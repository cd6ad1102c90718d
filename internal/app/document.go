package app

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/evanschultz/brainboard/internal/domain"
)

// ExportFormat selects the document encoding.
type ExportFormat string

// ExportJSON and related constants define the supported encodings.
const (
	ExportJSON ExportFormat = "json"
	ExportYAML ExportFormat = "yaml"
)

const (
	documentSchemaURL     = "https://brainboard.local/schema/board.json"
	exportFilenamePrefix  = "brainstorming-data-"
	exportTimestampLayout = "2006-01-02T15-04-05"
)

//go:embed board.schema.json
var documentSchemaJSON string

var documentSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(documentSchemaURL, strings.NewReader(documentSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add document schema: %w", err)
	}
	schema, err := compiler.Compile(documentSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile document schema: %w", err)
	}
	return schema, nil
})

var (
	documentKeys        = []string{"projectVision", "features", "phases"}
	documentFeatureKeys = []string{"id", "title", "description", "User Problem", "KeyComponents", "phase", "tags"}
)

// DocumentError describes why a document was rejected. It matches
// ErrInvalidDocument with errors.Is.
type DocumentError struct {
	Path    string
	Message string
	Err     error
}

// Error renders the failure with its location when known.
func (e *DocumentError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid document at %s: %s", e.Path, e.Message)
	}
	return "invalid document: " + e.Message
}

func (e *DocumentError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidDocument}
	}
	return []error{ErrInvalidDocument, e.Err}
}

// Document is the interchange file: a vision and the feature sequence.
// Fields it does not model are kept in Extra and written back on export.
type Document struct {
	ProjectVision string
	Features      []DocumentFeature
	// Phases is only written when an export asks for the column order.
	Phases []string
	Extra  map[string]json.RawMessage
}

// DocumentFeature is one feature as stored in a document.
type DocumentFeature struct {
	ID            string                     `json:"id"`
	Title         string                     `json:"title"`
	Description   string                     `json:"description"`
	UserProblem   string                     `json:"User Problem,omitempty"`
	KeyComponents []string                   `json:"KeyComponents,omitempty"`
	Phase         string                     `json:"phase"`
	Tags          []string                   `json:"tags"`
	Extra         map[string]json.RawMessage `json:"-"`
}

type documentFields struct {
	ProjectVision string            `json:"projectVision"`
	Features      []DocumentFeature `json:"features"`
	Phases        []string          `json:"phases,omitempty"`
}

// MarshalJSON writes known fields first, then extra fields sorted by name.
func (d Document) MarshalJSON() ([]byte, error) {
	features := d.Features
	if features == nil {
		features = []DocumentFeature{}
	}
	base, err := json.Marshal(documentFields{
		ProjectVision: d.ProjectVision,
		Features:      features,
		Phases:        d.Phases,
	})
	if err != nil {
		return nil, err
	}
	return appendExtraFields(base, d.Extra, documentKeys)
}

// UnmarshalJSON decodes known fields and keeps the rest in Extra.
func (d *Document) UnmarshalJSON(raw []byte) error {
	var known documentFields
	if err := json.Unmarshal(raw, &known); err != nil {
		return err
	}
	extra, err := extraFields(raw, documentKeys)
	if err != nil {
		return err
	}
	*d = Document{
		ProjectVision: known.ProjectVision,
		Features:      known.Features,
		Phases:        known.Phases,
		Extra:         extra,
	}
	return nil
}

// MarshalJSON writes known fields first, then extra fields sorted by name.
func (f DocumentFeature) MarshalJSON() ([]byte, error) {
	type plain DocumentFeature
	out := plain(f)
	if out.Tags == nil {
		out.Tags = []string{}
	}
	base, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return appendExtraFields(base, f.Extra, documentFeatureKeys)
}

// UnmarshalJSON decodes known fields and keeps the rest in Extra.
func (f *DocumentFeature) UnmarshalJSON(raw []byte) error {
	type plain DocumentFeature
	var known plain
	if err := json.Unmarshal(raw, &known); err != nil {
		return err
	}
	extra, err := extraFields(raw, documentFeatureKeys)
	if err != nil {
		return err
	}
	known.Extra = extra
	*f = DocumentFeature(known)
	return nil
}

// ParseDocument decodes raw and validates it against the document schema.
func ParseDocument(raw []byte) (Document, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return Document{}, &DocumentError{Message: "invalid JSON format", Err: err}
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return Document{}, &DocumentError{Message: "invalid JSON format: trailing data"}
	}

	schema, err := documentSchema()
	if err != nil {
		return Document{}, err
	}
	if err := schema.Validate(value); err != nil {
		return Document{}, documentErrorFromSchema(err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, &DocumentError{Message: "invalid JSON format", Err: err}
	}
	return doc, nil
}

// toBoard converts a parsed document into a board. Features without an id get
// one from newID; repeated ids are rejected.
func (d Document) toBoard(newID IDGenerator) (domain.Board, error) {
	features := make([]domain.Feature, 0, len(d.Features))
	firstUse := map[string]int{}
	for idx, in := range d.Features {
		in.ID = strings.TrimSpace(in.ID)
		if in.ID == "" {
			in.ID = newID()
		}
		if first, ok := firstUse[in.ID]; ok {
			return domain.Board{}, &DocumentError{
				Path:    fmt.Sprintf("features[%d].id", idx),
				Message: fmt.Sprintf("duplicate id %q, first used by features[%d]", in.ID, first),
				Err:     domain.ErrDuplicateID,
			}
		}
		firstUse[in.ID] = idx

		feature, err := in.toDomain()
		if err != nil {
			return domain.Board{}, &DocumentError{
				Path:    fmt.Sprintf("features[%d]", idx),
				Message: err.Error(),
				Err:     err,
			}
		}
		features = append(features, feature)
	}

	board, err := domain.NewBoard(d.ProjectVision, features, d.Phases)
	if err != nil {
		docErr := &DocumentError{Message: err.Error(), Err: err}
		if errors.Is(err, domain.ErrInvalidVision) {
			docErr.Path = "projectVision"
		}
		return domain.Board{}, docErr
	}
	board.Extra = cloneRaw(d.Extra)
	return board, nil
}

func documentFromBoard(board domain.Board, includePhases bool) Document {
	doc := Document{
		ProjectVision: board.Vision,
		Features:      make([]DocumentFeature, 0, len(board.Features)),
		Extra:         cloneRaw(board.Extra),
	}
	for _, feature := range board.Features {
		doc.Features = append(doc.Features, documentFeatureFromDomain(feature))
	}
	if includePhases {
		doc.Phases = slices.Clone([]string(board.Phases))
	}
	return doc
}

func documentFeatureFromDomain(f domain.Feature) DocumentFeature {
	return DocumentFeature{
		ID:            f.ID,
		Title:         f.Title,
		Description:   f.Description,
		UserProblem:   f.UserProblem,
		KeyComponents: slices.Clone(f.KeyComponents),
		Phase:         f.Phase,
		Tags:          slices.Clone(f.Tags),
		Extra:         cloneRaw(f.Extra),
	}
}

// FeatureJSON encodes one feature the way it appears inside a document.
func FeatureJSON(f domain.Feature) ([]byte, error) {
	return json.MarshalIndent(documentFeatureFromDomain(f), "", "  ")
}

func (f DocumentFeature) toDomain() (domain.Feature, error) {
	return domain.NewFeature(domain.FeatureInput{
		ID:            f.ID,
		Title:         f.Title,
		Description:   f.Description,
		UserProblem:   f.UserProblem,
		KeyComponents: f.KeyComponents,
		Phase:         f.Phase,
		Tags:          f.Tags,
		Extra:         f.Extra,
	})
}

// ParseExportFormat normalizes a format name; empty input yields ExportJSON.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "json":
		return ExportJSON, nil
	case "yaml", "yml":
		return ExportYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
	}
}

// EncodeDocument renders doc as two-space indented JSON or as block YAML with
// the same key order.
func EncodeDocument(doc Document, format ExportFormat) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	switch format {
	case ExportJSON, "":
		return append(data, '\n'), nil
	case ExportYAML:
		return jsonToYAML(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
}

// ExportFilename names an export written at now, e.g.
// brainstorming-data-2024-05-01T09-30-00.json.
func ExportFilename(now time.Time, format ExportFormat) string {
	ext := ".json"
	if format == ExportYAML {
		ext = ".yaml"
	}
	return exportFilenamePrefix + now.UTC().Format(exportTimestampLayout) + ext
}

// jsonToYAML re-encodes JSON through a yaml.Node so key order survives.
func jsonToYAML(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("convert document to yaml: %w", err)
	}
	useBlockStyle(&node)
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("encode yaml document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml document: %w", err)
	}
	return buf.Bytes(), nil
}

func useBlockStyle(node *yaml.Node) {
	node.Style = 0
	for _, child := range node.Content {
		useBlockStyle(child)
	}
}

func documentErrorFromSchema(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &DocumentError{Message: err.Error(), Err: err}
	}
	leaf := firstLeafCause(ve)
	return &DocumentError{
		Path:    jsonPointerToPath(leaf.InstanceLocation),
		Message: leaf.Message,
	}
}

func firstLeafCause(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	return err
}

// jsonPointerToPath turns /features/0/title into features[0].title.
func jsonPointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(strings.TrimPrefix(ptr, "#"), "/")
	if ptr == "" {
		return ""
	}
	var path strings.Builder
	for _, part := range strings.Split(ptr, "/") {
		part = strings.ReplaceAll(strings.ReplaceAll(part, "~1", "/"), "~0", "~")
		if idx, err := strconv.Atoi(part); err == nil {
			fmt.Fprintf(&path, "[%d]", idx)
			continue
		}
		if path.Len() > 0 {
			path.WriteByte('.')
		}
		path.WriteString(part)
	}
	return path.String()
}

func extraFields(raw []byte, known []string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for key := range fields {
		if isKnownKey(known, key) {
			delete(fields, key)
		}
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

func appendExtraFields(base []byte, extra map[string]json.RawMessage, known []string) ([]byte, error) {
	keys := make([]string, 0, len(extra))
	for key := range extra {
		if !isKnownKey(known, key) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return base, nil
	}
	slices.Sort(keys)

	var buf bytes.Buffer
	buf.Write(base[:len(base)-1])
	needComma := len(base) > 2
	for _, key := range keys {
		if needComma {
			buf.WriteByte(',')
		}
		needComma = true
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(extra[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// isKnownKey matches case-insensitively, like encoding/json field lookup.
func isKnownKey(known []string, key string) bool {
	return slices.ContainsFunc(known, func(k string) bool {
		return strings.EqualFold(k, key)
	})
}

func cloneRaw(in map[string]json.RawMessage) map[string]json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]json.RawMessage, len(in))
	for key, raw := range in {
		out[key] = slices.Clone(raw)
	}
	return out
}
