package game

// Object ids the map service reports that carry meaning for point-of-interest
// selection. The numbering follows the client's object table.
const (
	ObjectCairnStoneAlpha     ObjectID = 17
	ObjectInifussTree         ObjectID = 30
	ObjectHoradricOrifice     ObjectID = 152
	ObjectWirtCorpse          ObjectID = 268
	ObjectHoradricCubeChest   ObjectID = 354
	ObjectHoradricScrollChest ObjectID = 355
	ObjectStaffOfKingsChest   ObjectID = 356
	ObjectYetAnotherTome      ObjectID = 357
	ObjectHellForge           ObjectID = 376
	ObjectFrozenAnya          ObjectID = 558
	ObjectGoodChest           ObjectID = 580
	ObjectSparklyChest        ObjectID = 581
)

var waypointObjects = map[ObjectID]struct{}{
	119: {}, 145: {}, 156: {}, 157: {}, 237: {}, 238: {}, 288: {}, 323: {},
	324: {}, 398: {}, 402: {}, 429: {}, 494: {}, 496: {}, 511: {}, 539: {},
}

var questObjects = map[ObjectID]string{
	ObjectCairnStoneAlpha:     "Cairn Stones",
	ObjectInifussTree:         "Tree of Inifuss",
	ObjectHoradricOrifice:     "Horadric Orifice",
	ObjectWirtCorpse:          "Wirt's Body",
	ObjectHoradricCubeChest:   "Horadric Cube",
	ObjectHoradricScrollChest: "Horadric Scroll",
	ObjectStaffOfKingsChest:   "Staff of Kings",
	ObjectYetAnotherTome:      "Summoner",
	ObjectHellForge:           "Hell Forge",
	ObjectFrozenAnya:          "Anya",
}

var superChests = map[ObjectID]struct{}{
	ObjectGoodChest:    {},
	ObjectSparklyChest: {},
}

// IsWaypoint reports whether o is any of the waypoint object variants.
func (o ObjectID) IsWaypoint() bool {
	_, ok := waypointObjects[o]
	return ok
}

// IsQuest reports whether o is a quest-relevant object.
func (o ObjectID) IsQuest() bool {
	_, ok := questObjects[o]
	return ok
}

// IsSuperChest reports whether o is a chest with improved drops.
func (o ObjectID) IsSuperChest() bool {
	_, ok := superChests[o]
	return ok
}

// Label returns a short display label for o.
func (o ObjectID) Label() string {
	if name, ok := questObjects[o]; ok {
		return name
	}
	switch {
	case o.IsWaypoint():
		return "Waypoint"
	case o.IsSuperChest():
		return "Super Chest"
	}
	return "Object"
}
