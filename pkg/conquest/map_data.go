package conquest

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// StandardMapName is the name of the built-in map.
const StandardMapName = "cantons"

var (
	standardMapOnce sync.Once
	standardMap     *TerritoryMap
)

// StandardMap returns the built-in map of the 26 Swiss cantons.
// It is built once and shared.
func StandardMap() *TerritoryMap {
	standardMapOnce.Do(func() {
		m, err := NewTerritoryMap(StandardMapName, cantonDefs())
		if err != nil {
			panic(fmt.Sprintf("standard map is invalid: %v", err))
		}
		if lost := m.Unreachable(); len(lost) > 0 {
			log.Warn().Interface("territories", lost).Msg("Standard map has unreachable territories")
		}
		standardMap = m
	})
	return standardMap
}

// MapByName returns a registered map, or an error for unknown names.
func MapByName(name string) (*TerritoryMap, error) {
	switch name {
	case "", StandardMapName:
		return StandardMap(), nil
	default:
		return nil, fmt.Errorf("unknown map %q", name)
	}
}

func cantonDefs() []Territory {
	names := map[TerritoryID]string{
		"ag": "Aargau", "ai": "Appenzell Innerrhoden", "ar": "Appenzell Ausserrhoden",
		"be": "Bern", "bl": "Basel-Landschaft", "bs": "Basel-Stadt", "fr": "Fribourg",
		"ge": "Geneva", "gl": "Glarus", "gr": "Graubünden", "ju": "Jura", "lu": "Lucerne",
		"ne": "Neuchâtel", "nw": "Nidwalden", "ow": "Obwalden", "sg": "St. Gallen",
		"sh": "Schaffhausen", "so": "Solothurn", "sz": "Schwyz", "tg": "Thurgau",
		"ti": "Ticino", "ur": "Uri", "vd": "Vaud", "vs": "Valais", "zg": "Zug", "zh": "Zürich",
	}
	borders := map[TerritoryID][]TerritoryID{
		"ag": {"bl", "lu", "zg", "zh", "so"},
		"ai": {"ar", "sg"},
		"ar": {"ai", "sg"},
		"be": {"fr", "ju", "ne", "so", "vd", "vs", "lu", "ow", "nw", "ur"},
		"bl": {"ag", "bs", "so", "ju"},
		"bs": {"bl"},
		"fr": {"be", "vd", "ne"},
		"ge": {"vd"},
		"gl": {"sg", "sz", "gr", "ur"},
		"gr": {"sg", "ti", "gl", "ur"},
		"ju": {"be", "so", "bl"},
		"lu": {"ag", "be", "nw", "ow", "zg", "sz"},
		"ne": {"be", "fr", "vd"},
		"nw": {"ow", "lu", "ur", "be"},
		"ow": {"nw", "ur", "lu", "be"},
		"sg": {"ai", "ar", "gl", "tg", "zh", "gr", "sz"},
		"sh": {"zh", "tg"},
		"so": {"be", "bl", "ju", "ag"},
		"sz": {"zg", "ur", "gl", "lu", "sg", "zh"},
		"tg": {"sh", "sg", "zh"},
		"ti": {"gr", "vs", "ur"},
		"ur": {"sz", "ow", "gr", "ti", "nw", "gl", "be", "vs"},
		"vd": {"ge", "fr", "vs", "ne", "be"},
		"vs": {"vd", "be", "ti", "ur"},
		"zg": {"ag", "sz", "lu", "zh"},
		"zh": {"ag", "sg", "tg", "sh", "zg", "sz"},
	}
	defs := make([]Territory, 0, len(names))
	for id, name := range names {
		defs = append(defs, Territory{ID: id, Name: name, Neighbors: borders[id]})
	}
	return defs
}
