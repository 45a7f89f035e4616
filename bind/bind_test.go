package bind

import (
	"testing"

	"github.com/lattice-substrate/map1/maperr"
	"github.com/lattice-substrate/map1/mapval"
)

func assertCode(t *testing.T, err error, want maperr.Code) {
	t.Helper()
	me, ok := err.(*maperr.Error)
	if !ok || me == nil {
		t.Fatalf("error = %v, want *maperr.Error with code %s", err, want)
	}
	if me.Code != want {
		t.Fatalf("error code = %s, want %s", me.Code, want)
	}
}

func abDescriptor() *mapval.Value {
	return mapval.Map([]mapval.Entry{
		{Key: "a", Value: mapval.Integer(1)},
		{Key: "b", Value: mapval.Integer(2)},
	})
}

func TestProjectMixedMatchFailsClosed(t *testing.T) {
	_, err := Project(abDescriptor(), []string{"/a", "/nope"})
	assertCode(t, err, maperr.ErrSchema)
}

func TestProjectAllUnmatchedYieldsEmptyMap(t *testing.T) {
	v, err := Project(abDescriptor(), []string{"/nope"})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if v.Kind() != mapval.KindMap || len(v.MapValue()) != 0 {
		t.Fatalf("expected empty MAP, got %v", v)
	}
}

func TestProjectSingleFieldSelection(t *testing.T) {
	v, err := Project(abDescriptor(), []string{"/a"})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	entries := v.MapValue()
	if len(entries) != 1 || entries[0].Key != "a" || entries[0].Value.IntegerValue() != 1 {
		t.Fatalf("expected {a:1}, got %v", entries)
	}
}

func TestProjectThroughListIsSchemaError(t *testing.T) {
	descriptor := mapval.Map([]mapval.Entry{
		{Key: "a", Value: mapval.List([]*mapval.Value{mapval.Boolean(true)})},
	})
	_, err := Project(descriptor, []string{"/a/0"})
	assertCode(t, err, maperr.ErrSchema)
}

func TestProjectPointerEscapes(t *testing.T) {
	descriptor := mapval.Map([]mapval.Entry{
		{Key: "a/b", Value: mapval.Integer(1)},
		{Key: "a~b", Value: mapval.Integer(2)},
	})

	slash, err := Project(descriptor, []string{"/a~1b"})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(slash.MapValue()) != 1 || slash.MapValue()[0].Key != "a/b" {
		t.Fatalf("expected selection of key a/b, got %v", slash.MapValue())
	}

	tilde, err := Project(descriptor, []string{"/a~0b"})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(tilde.MapValue()) != 1 || tilde.MapValue()[0].Key != "a~b" {
		t.Fatalf("expected selection of key a~b, got %v", tilde.MapValue())
	}

	_, err = Project(descriptor, []string{"/a~2b"})
	assertCode(t, err, maperr.ErrSchema)
}

func TestProjectEmptyPointerSelectsWholeDescriptor(t *testing.T) {
	d := abDescriptor()
	v, err := Project(d, []string{""})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(v.MapValue()) != 2 {
		t.Fatalf("expected full descriptor, got %v", v.MapValue())
	}
}

func TestProjectDuplicatePointersRejected(t *testing.T) {
	_, err := Project(abDescriptor(), []string{"/a", "/a"})
	assertCode(t, err, maperr.ErrSchema)
}

func TestProjectSubsumption(t *testing.T) {
	descriptor := mapval.Map([]mapval.Entry{
		{Key: "a", Value: mapval.Map([]mapval.Entry{
			{Key: "x", Value: mapval.Integer(1)},
			{Key: "y", Value: mapval.Integer(2)},
		})},
	})
	// "/a" subsumes "/a/x": the shorter path wins, selecting the whole
	// "a" subtree rather than just "a.x".
	v, err := Project(descriptor, []string{"/a", "/a/x"})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	inner := v.MapValue()[0].Value.MapValue()
	if len(inner) != 2 {
		t.Fatalf("expected subsumption to keep the whole /a subtree, got %v", inner)
	}
}

func TestProjectRootMustBeMap(t *testing.T) {
	_, err := Project(mapval.Integer(1), []string{"/a"})
	assertCode(t, err, maperr.ErrSchema)
}

func TestProjectRejectsMalformedPointer(t *testing.T) {
	_, err := Project(abDescriptor(), []string{"no-leading-slash"})
	assertCode(t, err, maperr.ErrSchema)
}
