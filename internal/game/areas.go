package game

import (
	"slices"
	"strconv"
	"strings"
)

// Area is a level id of the game world. The numbering is the client's own and
// is shared with the map service.
type Area uint32

const (
	AreaNone               Area = 0
	RogueEncampment        Area = 1
	BloodMoor              Area = 2
	ColdPlains             Area = 3
	DenOfEvil              Area = 8
	Tristram               Area = 38
	LutGholein             Area = 40
	CanyonOfTheMagi        Area = 46
	TalRashasTomb1         Area = 66
	TalRashasTomb2         Area = 67
	TalRashasTomb3         Area = 68
	TalRashasTomb4         Area = 69
	TalRashasTomb5         Area = 70
	TalRashasTomb6         Area = 71
	TalRashasTomb7         Area = 72
	DurielsLair            Area = 73
	ArcaneSanctuary        Area = 74
	KurastDocks            Area = 75
	ThePandemoniumFortress Area = 103
	ChaosSanctuary         Area = 108
	Harrogath              Area = 109
	ThroneOfDestruction    Area = 131
	TheWorldstoneChamber   Area = 132
	UberTristram           Area = 136
)

var areaNames = [...]string{
	"None",
	"Rogue Encampment",
	"Blood Moor",
	"Cold Plains",
	"Stony Field",
	"Dark Wood",
	"Black Marsh",
	"Tamoe Highland",
	"Den of Evil",
	"Cave Level 1",
	"Underground Passage Level 1",
	"Hole Level 1",
	"Pit Level 1",
	"Cave Level 2",
	"Underground Passage Level 2",
	"Hole Level 2",
	"Pit Level 2",
	"Burial Grounds",
	"Crypt",
	"Mausoleum",
	"Forgotten Tower",
	"Tower Cellar Level 1",
	"Tower Cellar Level 2",
	"Tower Cellar Level 3",
	"Tower Cellar Level 4",
	"Tower Cellar Level 5",
	"Monastery Gate",
	"Outer Cloister",
	"Barracks",
	"Jail Level 1",
	"Jail Level 2",
	"Jail Level 3",
	"Inner Cloister",
	"Cathedral",
	"Catacombs Level 1",
	"Catacombs Level 2",
	"Catacombs Level 3",
	"Catacombs Level 4",
	"Tristram",
	"Moo Moo Farm",
	"Lut Gholein",
	"Rocky Waste",
	"Dry Hills",
	"Far Oasis",
	"Lost City",
	"Valley of Snakes",
	"Canyon of the Magi",
	"Sewers Level 1",
	"Sewers Level 2",
	"Sewers Level 3",
	"Harem Level 1",
	"Harem Level 2",
	"Palace Cellar Level 1",
	"Palace Cellar Level 2",
	"Palace Cellar Level 3",
	"Stony Tomb Level 1",
	"Halls of the Dead Level 1",
	"Halls of the Dead Level 2",
	"Claw Viper Temple Level 1",
	"Stony Tomb Level 2",
	"Halls of the Dead Level 3",
	"Claw Viper Temple Level 2",
	"Maggot Lair Level 1",
	"Maggot Lair Level 2",
	"Maggot Lair Level 3",
	"Ancient Tunnels",
	"Tal Rasha's Tomb 1",
	"Tal Rasha's Tomb 2",
	"Tal Rasha's Tomb 3",
	"Tal Rasha's Tomb 4",
	"Tal Rasha's Tomb 5",
	"Tal Rasha's Tomb 6",
	"Tal Rasha's Tomb 7",
	"Duriel's Lair",
	"Arcane Sanctuary",
	"Kurast Docks",
	"Spider Forest",
	"Great Marsh",
	"Flayer Jungle",
	"Lower Kurast",
	"Kurast Bazaar",
	"Upper Kurast",
	"Kurast Causeway",
	"Travincal",
	"Arachnid Lair",
	"Spider Cavern",
	"Swampy Pit Level 1",
	"Swampy Pit Level 2",
	"Flayer Dungeon Level 1",
	"Flayer Dungeon Level 2",
	"Swampy Pit Level 3",
	"Flayer Dungeon Level 3",
	"Kurast Sewers Level 1",
	"Kurast Sewers Level 2",
	"Ruined Temple",
	"Disused Fane",
	"Forgotten Reliquary",
	"Forgotten Temple",
	"Ruined Fane",
	"Disused Reliquary",
	"Durance of Hate Level 1",
	"Durance of Hate Level 2",
	"Durance of Hate Level 3",
	"The Pandemonium Fortress",
	"Outer Steppes",
	"Plains of Despair",
	"City of the Damned",
	"River of Flame",
	"Chaos Sanctuary",
	"Harrogath",
	"Bloody Foothills",
	"Frigid Highlands",
	"Arreat Plateau",
	"Crystalline Passage",
	"Frozen River",
	"Glacial Trail",
	"Drifter Cavern",
	"Frozen Tundra",
	"The Ancients' Way",
	"Icy Cellar",
	"Arreat Summit",
	"Nihlathak's Temple",
	"Halls of Anguish",
	"Halls of Pain",
	"Halls of Vaught",
	"Abaddon",
	"Pit of Acheron",
	"Infernal Pit",
	"Worldstone Keep Level 1",
	"Worldstone Keep Level 2",
	"Worldstone Keep Level 3",
	"Throne of Destruction",
	"The Worldstone Chamber",
	"Matron's Den",
	"Forgotten Sands",
	"Furnace of Pain",
	"Uber Tristram",
}

// Name returns the display name of the area, or its number when the id is
// outside the known range.
func (a Area) Name() string {
	if int(a) < len(areaNames) {
		return areaNames[a]
	}
	return "Area " + strconv.FormatUint(uint64(a), 10)
}

func (a Area) String() string {
	return a.Name()
}

// Known reports whether a is a named, non-None area.
func (a Area) Known() bool {
	return a != AreaNone && int(a) < len(areaNames)
}

// LookupArea resolves a display name (case-insensitive) to its area.
func LookupArea(name string) (Area, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return AreaNone, false
	}
	for i, n := range areaNames {
		if i == int(AreaNone) {
			continue
		}
		if strings.EqualFold(n, name) {
			return Area(i), true
		}
	}
	return AreaNone, false
}

// ParseAreaList splits a comma separated list of area names. Names that do
// not resolve are dropped.
func ParseAreaList(s string) []Area {
	var out []Area
	for _, part := range strings.Split(s, ",") {
		if a, ok := LookupArea(part); ok {
			out = append(out, a)
		}
	}
	return out
}

// TalRashasTombs lists the seven tomb candidates reachable from the canyon.
func TalRashasTombs() []Area {
	return []Area{
		TalRashasTomb1, TalRashasTomb2, TalRashasTomb3, TalRashasTomb4,
		TalRashasTomb5, TalRashasTomb6, TalRashasTomb7,
	}
}

func sortAreas(areas []Area) {
	slices.Sort(areas)
}
