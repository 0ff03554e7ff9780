package dag

import (
	"reflect"
	"strings"
	"testing"
)

func build(t *testing.T, deps map[string][]string) *Graph {
	t.Helper()
	g := New()
	for step := range deps {
		g.Add(step)
	}
	for step, parents := range deps {
		for _, p := range parents {
			if err := g.Depend(step, p); err != nil {
				t.Fatalf("depend %s -> %s: %v", step, p, err)
			}
		}
	}
	return g
}

func TestDependErrors(t *testing.T) {
	g := New()
	g.Add("a")

	if err := g.Depend("a", "a"); err == nil {
		t.Error("expected error for self-dependency")
	}
	if err := g.Depend("a", "missing"); err == nil {
		t.Error("expected error for unknown dependency")
	}
	if err := g.Depend("missing", "a"); err == nil {
		t.Error("expected error for unknown step")
	}
}

func TestDependIsIdempotent(t *testing.T) {
	g := New()
	g.Add("a")
	g.Add("b")
	for i := 0; i < 3; i++ {
		if err := g.Depend("b", "a"); err != nil {
			t.Fatalf("depend: %v", err)
		}
	}
	if got := g.Children("a"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("expected single child edge, got %v", got)
	}
}

func TestSortRespectsDependencies(t *testing.T) {
	g := build(t, map[string][]string{
		"sales":     nil,
		"products":  nil,
		"stg_sales": {"sales", "products"},
		"forecast":  {"stg_sales"},
		"rfm":       {"stg_sales"},
	})

	order, err := g.Sort()
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	if len(order) != 5 {
		t.Fatalf("expected 5 steps, got %d: %v", len(order), order)
	}

	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for step, parents := range map[string][]string{
		"stg_sales": {"sales", "products"},
		"forecast":  {"stg_sales"},
		"rfm":       {"stg_sales"},
	} {
		for _, p := range parents {
			if pos[p] >= pos[step] {
				t.Errorf("%s must come before %s, got order %v", p, step, order)
			}
		}
	}
}

func TestSortIsDeterministic(t *testing.T) {
	g := build(t, map[string][]string{"c": nil, "a": nil, "b": nil})

	want := []string{"a", "b", "c"}
	for i := 0; i < 5; i++ {
		order, err := g.Sort()
		if err != nil {
			t.Fatalf("sort: %v", err)
		}
		if !reflect.DeepEqual(order, want) {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestSortDetectsCycle(t *testing.T) {
	g := build(t, map[string][]string{"a": nil, "b": {"a"}, "c": {"b"}})
	if err := g.Depend("a", "c"); err != nil {
		t.Fatalf("depend: %v", err)
	}

	_, err := g.Sort()
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error should mention the cycle: %v", err)
	}
}

func TestLevels(t *testing.T) {
	g := build(t, map[string][]string{
		"sales":     nil,
		"products":  nil,
		"stg_sales": {"sales", "products"},
		"forecast":  {"stg_sales"},
	})

	levels, err := g.Levels()
	if err != nil {
		t.Fatalf("levels: %v", err)
	}
	want := [][]string{
		{"products", "sales"},
		{"stg_sales"},
		{"forecast"},
	}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("expected %v, got %v", want, levels)
	}
}

func TestDownstream(t *testing.T) {
	g := build(t, map[string][]string{
		"sales":     nil,
		"customers": nil,
		"stg_sales": {"sales"},
		"rfm":       {"stg_sales", "customers"},
		"geo":       {"stg_sales", "customers"},
	})

	if got := g.Downstream("sales"); !reflect.DeepEqual(got, []string{"geo", "rfm", "stg_sales"}) {
		t.Errorf("downstream of sales = %v", got)
	}
	if got := g.Downstream("customers"); !reflect.DeepEqual(got, []string{"geo", "rfm"}) {
		t.Errorf("downstream of customers = %v", got)
	}
	if got := g.Downstream("geo"); len(got) != 0 {
		t.Errorf("expected no downstream for leaf, got %v", got)
	}
}

func TestRootsAndParents(t *testing.T) {
	g := build(t, map[string][]string{
		"sales":     nil,
		"products":  nil,
		"stg_sales": {"sales", "products"},
	})

	if got := g.Roots(); !reflect.DeepEqual(got, []string{"products", "sales"}) {
		t.Errorf("roots = %v", got)
	}
	if got := g.Parents("stg_sales"); !reflect.DeepEqual(got, []string{"products", "sales"}) {
		t.Errorf("parents = %v", got)
	}
	if !g.Has("stg_sales") || g.Has("nope") {
		t.Error("Has reported wrong membership")
	}
	if g.Len() != 3 {
		t.Errorf("expected 3 steps, got %d", g.Len())
	}
	if g.Edges() != 2 {
		t.Errorf("expected 2 edges, got %d", g.Edges())
	}
}
