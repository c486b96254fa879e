package key

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/jonwraymond/querystats/classify"
	"github.com/jonwraymond/querystats/shape"
)

var findShapeFields = []string{
	"cmdNs", "command", "filter", "sort", "projection", "skip", "limit",
	"singleBatch", "max", "min", "returnKey", "showRecordId", "tailable",
	"oplogReplay", "awaitData", "collation", "allowDiskUse", "let",
}

var findKeyFields = []string{
	"queryShape", "batchSize", "comment", "maxTimeMS", "noCursorTimeout",
	"readConcern", "allowPartialResults", "apiDeprecationErrors", "apiVersion",
	"apiStrict", "collectionType", "client", "hint",
}

func fullFindCommand() bson.D {
	return bson.D{
		{Key: "find", Value: "query_stats_find_key"},
		{Key: "filter", Value: bson.D{{Key: "v", Value: bson.D{{Key: "$eq", Value: int32(2)}}}}},
		{Key: "oplogReplay", Value: true},
		{Key: "comment", Value: "this is a test!!"},
		{Key: "min", Value: bson.D{{Key: "v", Value: int32(0)}}},
		{Key: "max", Value: bson.D{{Key: "v", Value: int32(4)}}},
		{Key: "hint", Value: bson.D{{Key: "v", Value: int32(1)}}},
		{Key: "sort", Value: bson.D{{Key: "a", Value: int32(-1)}}},
		{Key: "returnKey", Value: false},
		{Key: "noCursorTimeout", Value: true},
		{Key: "showRecordId", Value: false},
		{Key: "tailable", Value: false},
		{Key: "awaitData", Value: false},
		{Key: "allowPartialResults", Value: true},
		{Key: "skip", Value: int32(1)},
		{Key: "limit", Value: int32(2)},
		{Key: "maxTimeMS", Value: int32(500)},
		{Key: "collation", Value: bson.D{{Key: "locale", Value: "en_US"}, {Key: "strength", Value: int32(2)}}},
		{Key: "allowDiskUse", Value: true},
		{Key: "readConcern", Value: bson.D{{Key: "level", Value: "local"}}},
		{Key: "batchSize", Value: int32(2)},
		{Key: "singleBatch", Value: true},
		{Key: "let", Value: bson.D{}},
		{Key: "projection", Value: bson.D{{Key: "_id", Value: int32(0)}}},
		{Key: "apiDeprecationErrors", Value: false},
		{Key: "apiVersion", Value: "1"},
		{Key: "apiStrict", Value: false},
		{Key: "$db", Value: "test"},
	}
}

func testClient() bson.D {
	return bson.D{
		{Key: "application", Value: bson.D{{Key: "name", Value: "MongoDB Shell"}}},
		{Key: "driver", Value: bson.D{{Key: "name", Value: "nodejs"}, {Key: "version", Value: "6.0"}}},
	}
}

func mustAssembler(t *testing.T, strict bool) *Assembler {
	t.Helper()
	a, err := NewAssembler(Options{Strict: strict})
	if err != nil {
		t.Fatalf("NewAssembler() error = %v", err)
	}
	return a
}

func mustAssemble(t *testing.T, body bson.D, ectx ExecContext) *QueryStatsKey {
	t.Helper()
	req, err := NewRequest(body)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	k, err := mustAssembler(t, true).Assemble(req, ectx)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	return k
}

func TestAssemble_FindKeyIsComplete(t *testing.T) {
	k := mustAssemble(t, fullFindCommand(), ExecContext{Client: testClient()})

	if got := k.FieldNames(); !slices.Equal(got, findKeyFields) {
		t.Errorf("key fields = %v, want %v", got, findKeyFields)
	}
	if got := k.Shape.Names(); !slices.Equal(got, findShapeFields) {
		t.Errorf("shape fields = %v, want %v", got, findShapeFields)
	}

	doc := k.Document()
	var names []string
	for _, e := range doc {
		names = append(names, e.Key)
	}
	if !slices.Equal(names, findKeyFields) {
		t.Errorf("document fields = %v, want %v", names, findKeyFields)
	}
	qs, ok := doc[0].Value.(bson.D)
	if !ok {
		t.Fatalf("queryShape is %T, want bson.D", doc[0].Value)
	}
	if len(qs) != len(findShapeFields) {
		t.Errorf("queryShape has %d fields, want %d", len(qs), len(findShapeFields))
	}
}

func TestAssemble_FindEndToEnd(t *testing.T) {
	k := mustAssemble(t, fullFindCommand(), ExecContext{Client: testClient()})

	filter, _ := k.Shape.Get("filter")
	wantFilter := bson.D{{Key: "v", Value: bson.D{{Key: "$eq", Value: "?number"}}}}
	if diff := cmp.Diff(wantFilter, shape.Render(filter)); diff != "" {
		t.Errorf("filter mismatch (-want +got):\n%s", diff)
	}

	sort, _ := k.Shape.Get("sort")
	wantSort := bson.D{{Key: "a", Value: int32(-1)}}
	if diff := cmp.Diff(wantSort, shape.Render(sort)); diff != "" {
		t.Errorf("sort mismatch (-want +got):\n%s", diff)
	}

	hint, _ := k.Get("hint")
	wantHint := bson.D{{Key: "v", Value: int32(1)}}
	if diff := cmp.Diff(wantHint, shape.Render(hint)); diff != "" {
		t.Errorf("hint mismatch (-want +got):\n%s", diff)
	}

	checks := map[string]any{
		"batchSize":      int32(2),
		"maxTimeMS":      int32(500),
		"comment":        "?string",
		"apiVersion":     "1",
		"collectionType": "collection",
	}
	for name, want := range checks {
		v, ok := k.Get(name)
		if !ok {
			t.Errorf("outer field %q missing", name)
			continue
		}
		if got := shape.Render(v); got != want {
			t.Errorf("%s = %#v, want %#v", name, got, want)
		}
	}
}

func TestAssemble_NoLiteralLeaks(t *testing.T) {
	literals := []any{"needle-string-value", int32(987654), 31415.9265, "another secret"}
	for _, lit := range literals {
		body := bson.D{
			{Key: "find", Value: "c"},
			{Key: "filter", Value: bson.D{
				{Key: "v", Value: bson.D{{Key: "$eq", Value: lit}}},
				{Key: "w", Value: lit},
				{Key: "$or", Value: bson.A{bson.D{{Key: "x", Value: bson.D{{Key: "$in", Value: bson.A{lit}}}}}}},
				{Key: "$expr", Value: bson.D{{Key: "$eq", Value: bson.A{"$y", lit}}}},
			}},
			{Key: "projection", Value: bson.D{{Key: "z", Value: bson.D{{Key: "$add", Value: bson.A{"$z", lit}}}}}},
			{Key: "let", Value: bson.D{{Key: "v1", Value: lit}}},
			{Key: "min", Value: bson.D{{Key: "v", Value: lit}}},
		}
		k := mustAssemble(t, body, ExecContext{})
		out, err := bson.MarshalExtJSON(k.Shape.Document(), true, false)
		if err != nil {
			t.Fatalf("MarshalExtJSON() error = %v", err)
		}
		needle, err := bson.MarshalExtJSON(bson.D{{Key: "x", Value: lit}}, true, false)
		if err != nil {
			t.Fatal(err)
		}
		// {"x":<literal>} -> <literal>
		lv := strings.TrimSuffix(strings.TrimPrefix(string(needle), `{"x":`), "}")
		if strings.Contains(string(out), lv) {
			t.Errorf("literal %s leaked into shape %s", lv, out)
		}
	}
}

func TestAssemble_ShapeStability(t *testing.T) {
	body := func(v int32) bson.D {
		return bson.D{
			{Key: "find", Value: "c"},
			{Key: "filter", Value: bson.D{{Key: "v", Value: bson.D{{Key: "$eq", Value: v}}}}},
		}
	}
	a := mustAssemble(t, body(2), ExecContext{})
	b := mustAssemble(t, body(5), ExecContext{})
	if !a.Equal(b) {
		t.Error("keys differing only in literal values should be equal")
	}
}

func TestAssemble_AbsentOuterFieldsOmitted(t *testing.T) {
	k := mustAssemble(t, bson.D{{Key: "find", Value: "c"}, {Key: "$db", Value: "d"}}, ExecContext{})

	want := []string{"queryShape", "collectionType"}
	if got := k.FieldNames(); !slices.Equal(got, want) {
		t.Errorf("key fields = %v, want %v", got, want)
	}
	for _, e := range k.Document() {
		if e.Value == nil {
			t.Errorf("outer field %q rendered as null", e.Key)
		}
	}
}

func TestAssemble_CollectionType(t *testing.T) {
	k := mustAssemble(t, bson.D{{Key: "find", Value: "c"}}, ExecContext{CollectionType: CollectionTypeView})
	v, _ := k.Get("collectionType")
	if shape.Render(v) != "view" {
		t.Errorf("collectionType = %v, want view", shape.Render(v))
	}
}

func TestAssemble_ClientIsOrderInsensitive(t *testing.T) {
	c1 := testClient()
	c2 := bson.D{c1[1], c1[0]}
	a := mustAssemble(t, bson.D{{Key: "find", Value: "c"}}, ExecContext{Client: c1})
	b := mustAssemble(t, bson.D{{Key: "find", Value: "c"}}, ExecContext{Client: c2})
	if !a.Equal(b) {
		t.Error("client metadata order should not affect the key")
	}
}

func TestAssemble_StrictRejectsUnknownOption(t *testing.T) {
	req, _ := NewRequest(bson.D{{Key: "find", Value: "c"}, {Key: "bogus", Value: 1}})

	_, err := mustAssembler(t, true).Assemble(req, ExecContext{})
	if !errors.Is(err, classify.ErrUnrecognizedOption) {
		t.Errorf("strict Assemble() error = %v, want ErrUnrecognizedOption", err)
	}

	k, err := mustAssembler(t, false).Assemble(req, ExecContext{})
	if err != nil {
		t.Fatalf("lenient Assemble() error = %v", err)
	}
	if slices.Contains(k.FieldNames(), "bogus") {
		t.Error("unknown option leaked into key")
	}
}

func TestAssemble_SchemaViolation(t *testing.T) {
	req, _ := NewRequest(bson.D{{Key: "find", Value: "c"}, {Key: "filter", Value: bson.D{{Key: "$bogus", Value: 1}}}})
	if _, err := mustAssembler(t, true).Assemble(req, ExecContext{}); !errors.Is(err, ErrSchemaViolation) {
		t.Errorf("Assemble() error = %v, want ErrSchemaViolation", err)
	}

	c, err := classify.DefaultRegistry().Split("find", bson.D{{Key: "find", Value: "c"}}, true)
	if err != nil {
		t.Fatal(err)
	}
	partial := &shape.QueryShape{Command: "find", Fields: []shape.Field{{Name: "filter", Value: shape.Unset{}}}}
	if _, err := Assemble(c, partial, ExecContext{}); !errors.Is(err, ErrSchemaViolation) {
		t.Errorf("Assemble(partial shape) error = %v, want ErrSchemaViolation", err)
	}
}

func TestNewRequest(t *testing.T) {
	if _, err := NewRequest(nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("NewRequest(nil) error = %v, want ErrInvalidRequest", err)
	}
	req, err := NewRequest(bson.D{{Key: "find", Value: "c"}})
	if err != nil || req.Command != "find" {
		t.Errorf("NewRequest() = %+v, %v", req, err)
	}
}

func TestNewAssembler_MissingShapifier(t *testing.T) {
	reg, err := classify.NewRegistry(classify.Schema{
		Command:     "count",
		ShapeFields: []string{"command", "cmdNs"},
		OuterFields: []string{classify.QueryShapeField},
		Options:     []classify.FieldSpec{{Name: "count", Class: classify.ShapeField, Target: "cmdNs"}},
		Derived:     []string{"command"},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if _, err := NewAssembler(Options{Registry: reg}); !errors.Is(err, shape.ErrNoShapifier) {
		t.Errorf("NewAssembler() error = %v, want ErrNoShapifier", err)
	}
}
