package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/evanschultz/brainboard/internal/domain"
)

func TestParseDocumentRejections(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		wantPath string
		wantMsg  string
	}{
		{name: "malformed", raw: `{"projectVision":`, wantMsg: "invalid JSON format"},
		{name: "trailing data", raw: `{"projectVision":"v","features":[]} []`, wantMsg: "invalid JSON format"},
		{name: "not an object", raw: `[]`},
		{name: "missing vision", raw: `{"features": []}`},
		{name: "empty vision", raw: `{"projectVision": "", "features": []}`, wantPath: "projectVision"},
		{name: "features not array", raw: `{"projectVision": "v", "features": {}}`, wantPath: "features"},
		{name: "missing title", raw: `{"projectVision": "v", "features": [{"phase": "p"}]}`, wantPath: "features[0]"},
		{name: "empty phase", raw: `{"projectVision": "v", "features": [{"title": "t", "phase": ""}]}`, wantPath: "features[0].phase"},
		{name: "tags not array", raw: `{"projectVision": "v", "features": [{"title": "t", "phase": "p", "tags": "x"}]}`, wantPath: "features[0].tags"},
		{name: "tag not string", raw: `{"projectVision": "v", "features": [{"title": "t", "phase": "p", "tags": [1]}]}`, wantPath: "features[0].tags[0]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDocument([]byte(tc.raw))
			if !errors.Is(err, ErrInvalidDocument) {
				t.Fatalf("expected ErrInvalidDocument, got %v", err)
			}
			var docErr *DocumentError
			if !errors.As(err, &docErr) {
				t.Fatalf("expected *DocumentError, got %T", err)
			}
			if tc.wantPath != "" && docErr.Path != tc.wantPath {
				t.Fatalf("path = %q, want %q (%v)", docErr.Path, tc.wantPath, err)
			}
			if tc.wantMsg != "" && !strings.Contains(docErr.Message, tc.wantMsg) {
				t.Fatalf("message = %q, want %q", docErr.Message, tc.wantMsg)
			}
		})
	}
}

func TestDocumentToBoardBackfillsAndRejectsDuplicates(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
		"projectVision": "v",
		"features": [
			{"title": "one", "phase": "p"},
			{"id": "x", "title": "two", "phase": "q"}
		]
	}`))
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	board, err := doc.toBoard(sequentialIDs())
	if err != nil {
		t.Fatalf("toBoard() error = %v", err)
	}
	if board.Features[0].ID != "id-1" || board.Features[1].ID != "x" {
		t.Fatalf("unexpected ids %#v", board.Features)
	}

	dup, err := ParseDocument([]byte(`{"projectVision": "v", "features": [
		{"id": "a", "title": "one", "phase": "p"},
		{"id": "a", "title": "two", "phase": "p"}
	]}`))
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	_, err = dup.toBoard(sequentialIDs())
	if !errors.Is(err, domain.ErrDuplicateID) || !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected duplicate id document error, got %v", err)
	}
	var docErr *DocumentError
	if !errors.As(err, &docErr) || docErr.Path != "features[1].id" {
		t.Fatalf("unexpected error %#v", err)
	}
}

func TestDocumentBlankTitleRejectedByDomain(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"projectVision": "v", "features": [{"title": "   ", "phase": "p"}]}`))
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	_, err = doc.toBoard(sequentialIDs())
	if !errors.Is(err, domain.ErrInvalidTitle) || !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected invalid title document error, got %v", err)
	}
}

func TestDocumentRoundTripKeepsUnknownFields(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&fakeRepo{}, sequentialIDs(), nil, ServiceConfig{})
	raw := `{
		"projectVision": "v",
		"owner": {"name": "sam"},
		"features": [
			{"id": "a", "title": "one", "description": "d", "User Problem": "slow", "KeyComponents": ["api"], "phase": "p", "tags": ["x"], "priority": 3}
		]
	}`
	if _, err := svc.LoadDocument(ctx, []byte(raw)); err != nil {
		t.Fatalf("LoadDocument() error = %v", err)
	}
	out, err := svc.ExportDocument(ctx, ExportOptions{Format: ExportJSON})
	if err != nil {
		t.Fatalf("ExportDocument() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("export is not JSON: %v\n%s", err, out)
	}
	if _, ok := decoded["phases"]; ok {
		t.Fatal("phases should be omitted unless requested")
	}
	owner, ok := decoded["owner"].(map[string]any)
	if !ok || owner["name"] != "sam" {
		t.Fatalf("top-level extra lost: %#v", decoded)
	}
	feature := decoded["features"].([]any)[0].(map[string]any)
	if feature["User Problem"] != "slow" || feature["priority"] != float64(3) {
		t.Fatalf("feature fields lost: %#v", feature)
	}
	if !strings.HasPrefix(string(out), "{\n  \"projectVision\": \"v\",\n  \"features\": [") {
		t.Fatalf("unexpected layout:\n%s", out)
	}
}

func TestExportDocumentYAMLAndPhases(t *testing.T) {
	ctx := context.Background()
	svc := newLoadedService(t, nil)
	if _, err := svc.CreatePhase(ctx, "Done"); err != nil {
		t.Fatalf("CreatePhase() error = %v", err)
	}
	out, err := svc.ExportDocument(ctx, ExportOptions{Format: ExportYAML, IncludePhases: true})
	if err != nil {
		t.Fatalf("ExportDocument() error = %v", err)
	}
	if !strings.HasPrefix(string(out), "projectVision: Ship a brainstorming board\nfeatures:\n") {
		t.Fatalf("unexpected yaml layout:\n%s", out)
	}
	var decoded struct {
		ProjectVision string           `yaml:"projectVision"`
		Features      []map[string]any `yaml:"features"`
		Phases        []string         `yaml:"phases"`
	}
	if err := yaml.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("export is not YAML: %v", err)
	}
	if len(decoded.Features) != 3 || decoded.Features[0]["id"] != "A" {
		t.Fatalf("unexpected features %#v", decoded.Features)
	}
	if strings.Join(decoded.Phases, ",") != "To Do,Doing,Done" {
		t.Fatalf("unexpected phases %v", decoded.Phases)
	}
}

func TestParseExportFormat(t *testing.T) {
	for raw, want := range map[string]ExportFormat{"": ExportJSON, "JSON": ExportJSON, "yml": ExportYAML, "yaml": ExportYAML} {
		got, err := ParseExportFormat(raw)
		if err != nil || got != want {
			t.Fatalf("ParseExportFormat(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseExportFormat("toml"); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestExportFilename(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	if got := ExportFilename(at, ExportYAML); got != "brainstorming-data-2025-01-02T02-04-05.yaml" {
		t.Fatalf("ExportFilename() = %q", got)
	}
}

func TestFeatureJSONUsesDocumentKeys(t *testing.T) {
	feature, err := domain.NewFeature(domain.FeatureInput{
		ID:          "A",
		Title:       "Login",
		UserProblem: "Can't sign in",
		Phase:       "MVP",
		Tags:        []string{"auth"},
		Extra:       map[string]json.RawMessage{"effort": json.RawMessage(`3`)},
	})
	if err != nil {
		t.Fatalf("NewFeature() error = %v", err)
	}
	raw, err := FeatureJSON(feature)
	if err != nil {
		t.Fatalf("FeatureJSON() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["User Problem"] != "Can't sign in" || decoded["phase"] != "MVP" || decoded["effort"] != float64(3) {
		t.Fatalf("unexpected feature json %s", raw)
	}
}
