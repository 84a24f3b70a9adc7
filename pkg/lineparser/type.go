package lineparser

import "github.com/NotCoffee418/parking_bridge/pkg/parking"

// Markers printed by the sensor controller firmware.
const (
	MarkerAvailable = "Available Slots:"
	MarkerSlot      = "Slot"
	MarkerEntryGate = "Entry Gate:"
	MarkerExitGate  = "Exit Gate:"

	KeywordOccupied = "Occupied"
	KeywordFree     = "Free"
)

// rule pairs a line predicate with the extractor that runs when it matches.
type rule struct {
	matches func(line string) bool
	extract func(p *Parser, line string) parking.Update
}

type Parser struct {
	totalSlots int
	rules      []rule
}
