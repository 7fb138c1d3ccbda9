package arena

import "testing"

func TestArenaStability(t *testing.T) {
	a := NewMappedArena[string]()
	id1, err := a.Insert("foo", "foo-value")
	if err != nil {
		t.Fatal(err)
	}
	id2, err := a.Insert("bar", "bar-value")
	if err != nil {
		t.Fatal(err)
	}
	if *a.Get(id1) != "foo-value" || *a.Get(id2) != "bar-value" {
		t.Fatal("ids must dereference to the values they were inserted with")
	}
	*a.GetMut(id1) = "foo-value-2"
	if *a.Get(id1) != "foo-value-2" {
		t.Fatal("GetMut must be visible through Get")
	}
	if *a.Get(id2) != "bar-value" {
		t.Fatal("mutating id1 must not affect id2")
	}
}

func TestArenaDuplicateName(t *testing.T) {
	a := NewMappedArena[int]()
	if _, err := a.Insert("x", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Insert("x", 2); err == nil {
		t.Fatal("expected error on duplicate name")
	}
}

func TestArenaIterationOrder(t *testing.T) {
	a := NewMappedArena[int]()
	names := []string{"c", "a", "b"}
	for i, n := range names {
		if _, err := a.Insert(n, i); err != nil {
			t.Fatal(err)
		}
	}
	entries := a.Iter()
	for i, e := range entries {
		if e.Name != names[i] {
			t.Fatalf("expected insertion order, got %v", entries)
		}
	}
}

func TestArenaShallowThenFill(t *testing.T) {
	type skeleton struct {
		Name     string
		Resolved bool
	}
	a := NewMappedArena[skeleton]()
	id, err := a.InsertShallow("Concert", skeleton{Name: "Concert"})
	if err != nil {
		t.Fatal(err)
	}
	if a.Get(id).Resolved {
		t.Fatal("shallow insert should not be resolved yet")
	}
	a.GetMut(id).Resolved = true
	if !a.Get(id).Resolved {
		t.Fatal("GetMut must mutate in place")
	}
}
