package venue

// ReferenceZones is the six-zone stadium layout.
func ReferenceZones() []Zone {
	return []Zone{
		{ID: 1, Name: "North State", Rect: Rect{X: 150, Y: 50, Width: 300, Height: 100}, EntryExit: true},
		{ID: 2, Name: "Central Field", Rect: Rect{X: 200, Y: 160, Width: 200, Height: 100}},
		{ID: 3, Name: "East Stand", Rect: Rect{X: 50, Y: 160, Width: 140, Height: 200}},
		{ID: 4, Name: "West Stand", Rect: Rect{X: 410, Y: 160, Width: 140, Height: 200}},
		{ID: 5, Name: "South Stand", Rect: Rect{X: 150, Y: 270, Width: 300, Height: 100}},
		{ID: 6, Name: "VIP Area", Rect: Rect{X: 250, Y: 180, Width: 100, Height: 80}},
	}
}

// ReferenceAdjacency is the static adjacency table for ReferenceZones.
func ReferenceAdjacency() map[int][]int {
	return map[int][]int{
		1: {2, 3, 4},
		2: {1, 3, 4, 5, 6},
		3: {1, 2, 5},
		4: {1, 2, 5},
		5: {2, 3, 4, 6},
		6: {2, 5},
	}
}

// Reference builds the registry for the reference layout.
func Reference() *Registry {
	r, err := NewRegistry(ReferenceZones(), ReferenceAdjacency())
	if err != nil {
		panic("venue: reference layout invalid: " + err.Error())
	}
	return r
}
