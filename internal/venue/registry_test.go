package venue

import "testing"

func TestReferenceRegistry(t *testing.T) {
	r := Reference()
	if r.Len() != 6 {
		t.Fatalf("expected 6 zones, got %d", r.Len())
	}
	if got := r.EntryExit().ID; got != 1 {
		t.Fatalf("entry/exit zone = %d, want 1", got)
	}
	if got := len(r.NonEntryExit()); got != 5 {
		t.Fatalf("non entry/exit zones = %d, want 5", got)
	}
	for i, z := range r.Zones() {
		if z.ID != i+1 {
			t.Fatalf("zone at %d has id %d", i, z.ID)
		}
	}
	if adj := r.Adjacent(6); len(adj) != 2 || adj[0] != 2 || adj[1] != 5 {
		t.Fatalf("unexpected adjacency for zone 6: %v", adj)
	}
}

func TestNewRegistryRejectsBadLayouts(t *testing.T) {
	cases := []struct {
		name  string
		zones []Zone
		adj   map[int][]int
	}{
		{"empty", nil, nil},
		{"no exit", []Zone{{ID: 1, Rect: Rect{Width: 1, Height: 1}}}, nil},
		{"two exits", []Zone{
			{ID: 1, Rect: Rect{Width: 1, Height: 1}, EntryExit: true},
			{ID: 2, Rect: Rect{Width: 1, Height: 1}, EntryExit: true},
		}, nil},
		{"duplicate", []Zone{
			{ID: 1, Rect: Rect{Width: 1, Height: 1}, EntryExit: true},
			{ID: 1, Rect: Rect{Width: 1, Height: 1}},
		}, nil},
		{"zero area", []Zone{{ID: 1, EntryExit: true}}, nil},
		{"dangling adjacency", []Zone{{ID: 1, Rect: Rect{Width: 1, Height: 1}, EntryExit: true}}, map[int][]int{1: {9}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewRegistry(tc.zones, tc.adj); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRegistrySortsByID(t *testing.T) {
	r, err := NewRegistry([]Zone{
		{ID: 3, Rect: Rect{Width: 1, Height: 1}},
		{ID: 1, Rect: Rect{Width: 2, Height: 2}, EntryExit: true},
	}, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if r.Zones()[0].ID != 1 || r.Index(3) != 1 || r.Index(7) != -1 {
		t.Fatalf("unexpected ordering: %+v", r.Zones())
	}
	if r.Default().ID != 1 {
		t.Fatalf("default zone = %d", r.Default().ID)
	}
}

func TestRectCenter(t *testing.T) {
	x, y := Rect{X: 10, Y: 20, Width: 4, Height: 6}.Center()
	if x != 12 || y != 23 {
		t.Fatalf("center = (%v, %v)", x, y)
	}
}
