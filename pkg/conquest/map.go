package conquest

import (
	"fmt"
	"slices"
)

// TerritoryID identifies a territory on the map.
type TerritoryID string

// Territory is a static node of the adjacency graph.
type Territory struct {
	ID        TerritoryID   `json:"id"`
	Name      string        `json:"name"`
	Neighbors []TerritoryID `json:"neighbors"`
}

// TerritoryMap holds the static territory graph. It is never mutated after
// construction, so one instance may be shared between games.
type TerritoryMap struct {
	Label       string
	Territories map[TerritoryID]*Territory
	ids         []TerritoryID
}

// NewTerritoryMap validates the given definitions and builds a map.
// Every referenced neighbor must exist and no territory may border itself.
// Borders are made bidirectional. A disconnected graph is accepted; use
// Unreachable to find territories that can never be attacked.
func NewTerritoryMap(name string, defs []Territory) (*TerritoryMap, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("map %q has no territories", name)
	}
	m := &TerritoryMap{
		Label:       name,
		Territories: make(map[TerritoryID]*Territory, len(defs)),
	}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("map %q: territory with empty id", name)
		}
		if _, dup := m.Territories[d.ID]; dup {
			return nil, fmt.Errorf("map %q: duplicate territory %s", name, d.ID)
		}
		displayName := d.Name
		if displayName == "" {
			displayName = string(d.ID)
		}
		m.Territories[d.ID] = &Territory{ID: d.ID, Name: displayName}
		m.ids = append(m.ids, d.ID)
	}
	for _, d := range defs {
		for _, n := range d.Neighbors {
			if n == d.ID {
				return nil, fmt.Errorf("map %q: territory %s borders itself", name, d.ID)
			}
			if _, ok := m.Territories[n]; !ok {
				return nil, fmt.Errorf("map %q: territory %s references unknown neighbor %s", name, d.ID, n)
			}
			m.addBorder(d.ID, n)
		}
	}
	slices.Sort(m.ids)
	for _, t := range m.Territories {
		slices.Sort(t.Neighbors)
	}
	return m, nil
}

func (m *TerritoryMap) addBorder(a, b TerritoryID) {
	ta, tb := m.Territories[a], m.Territories[b]
	if !slices.Contains(ta.Neighbors, b) {
		ta.Neighbors = append(ta.Neighbors, b)
	}
	if !slices.Contains(tb.Neighbors, a) {
		tb.Neighbors = append(tb.Neighbors, a)
	}
}

// IDs returns all territory ids in sorted order.
func (m *TerritoryMap) IDs() []TerritoryID {
	return m.ids
}

// Has reports whether the territory exists.
func (m *TerritoryMap) Has(id TerritoryID) bool {
	_, ok := m.Territories[id]
	return ok
}

// Neighbors returns the sorted neighbor ids of a territory, or nil if unknown.
func (m *TerritoryMap) Neighbors(id TerritoryID) []TerritoryID {
	t, ok := m.Territories[id]
	if !ok {
		return nil
	}
	return t.Neighbors
}

// Name returns the display name of a territory, or the id if unknown.
func (m *TerritoryMap) Name(id TerritoryID) string {
	if t, ok := m.Territories[id]; ok {
		return t.Name
	}
	return string(id)
}

// Adjacent returns true if a and b share a border.
func (m *TerritoryMap) Adjacent(a, b TerritoryID) bool {
	t, ok := m.Territories[a]
	if !ok {
		return false
	}
	_, found := slices.BinarySearch(t.Neighbors, b)
	return found
}

// Unreachable returns the territories not connected to the first territory
// (in id order). An empty result means the graph is connected.
func (m *TerritoryMap) Unreachable() []TerritoryID {
	start := m.ids[0]
	seen := map[TerritoryID]bool{start: true}
	queue := []TerritoryID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range m.Territories[cur].Neighbors {
			if !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	var out []TerritoryID
	for _, id := range m.ids {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}
