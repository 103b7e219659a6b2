package paneresolve

import "testing"

func TestParsePanes(t *testing.T) {
	out := "1234\tmain\t2\t0\n5678\tmain\t0\t1\n"
	panes := parsePanes(out)
	if len(panes) != 2 {
		t.Fatalf("parsePanes() = %d panes, want 2", len(panes))
	}
	if panes[0].pid != 1234 || panes[0].target != "main:2.0" {
		t.Errorf("panes[0] = %+v", panes[0])
	}
	if panes[1].target != "main:0.1" {
		t.Errorf("panes[1].target = %q, want main:0.1", panes[1].target)
	}
}

func TestParsePanesSkipsMalformedLines(t *testing.T) {
	out := "1234\tmain\t2\t0\nnot-a-pane-line\n\t\t\t\n"
	panes := parsePanes(out)
	if len(panes) != 1 {
		t.Fatalf("parsePanes() = %d panes, want 1", len(panes))
	}
}

func TestResolveOnNilResolver(t *testing.T) {
	var r *Resolver
	if _, ok := r.Resolve(1); ok {
		t.Error("nil resolver must always report not-found")
	}
}

func TestResolveDirectMatch(t *testing.T) {
	r := &Resolver{targetByPID: map[int]string{42: "main:0.0"}}
	placement, ok := r.Resolve(42)
	if !ok || placement != "main:0.0" {
		t.Errorf("Resolve(42) = %v, %v", placement, ok)
	}
}
