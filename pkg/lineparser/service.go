package lineparser

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/NotCoffee418/parking_bridge/pkg/parking"
)

// NewParser builds a parser for a lot with totalSlots slots.
// Slot ids outside 1..totalSlots are rejected.
func NewParser(totalSlots int) *Parser {
	return &Parser{
		totalSlots: totalSlots,
		// First match wins.
		rules: []rule{
			{
				matches: func(line string) bool { return strings.Contains(line, MarkerAvailable) },
				extract: (*Parser).availableCount,
			},
			{
				matches: func(line string) bool {
					return strings.Contains(line, MarkerSlot) &&
						(strings.Contains(line, KeywordOccupied) || strings.Contains(line, KeywordFree))
				},
				extract: (*Parser).slotStatus,
			},
			{
				matches: func(line string) bool { return strings.Contains(line, MarkerEntryGate) },
				extract: func(_ *Parser, line string) parking.Update {
					return parking.EntryGateUpdate(textAfter(line, MarkerEntryGate))
				},
			},
			{
				matches: func(line string) bool { return strings.Contains(line, MarkerExitGate) },
				extract: func(_ *Parser, line string) parking.Update {
					return parking.ExitGateUpdate(textAfter(line, MarkerExitGate))
				},
			},
		},
	}
}

// Parse maps one raw device line to at most one update.
// It never fails: undecodable or unrecognised lines come back as NoOp.
func (p *Parser) Parse(raw string) parking.Update {
	if !utf8.ValidString(raw) {
		return parking.NoOpUpdate()
	}
	line := strings.TrimSpace(raw)
	if line == "" {
		return parking.NoOpUpdate()
	}

	for _, r := range p.rules {
		if r.matches(line) {
			return r.extract(p, line)
		}
	}
	return parking.NoOpUpdate()
}

// "Available Slots: 2"
func (p *Parser) availableCount(line string) parking.Update {
	parts := strings.Split(line, ":")
	if len(parts) < 2 {
		return parking.NoOpUpdate()
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return parking.NoOpUpdate()
	}
	return parking.AvailableCountUpdate(n)
}

// "Slot 2: Occupied". The id stays 1-based.
func (p *Parser) slotStatus(line string) parking.Update {
	fields := strings.Split(line, " ")
	if len(fields) < 2 {
		return parking.NoOpUpdate()
	}
	id, err := strconv.Atoi(strings.ReplaceAll(fields[1], ":", ""))
	if err != nil {
		return parking.NoOpUpdate()
	}
	if id < 1 || id > p.totalSlots {
		return parking.NoOpUpdate()
	}

	status := parking.StatusFree
	if strings.Contains(line, KeywordOccupied) {
		status = parking.StatusOccupied
	}
	return parking.SlotStatusUpdate(id, status)
}

func textAfter(line, marker string) string {
	idx := strings.Index(line, marker)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(line[idx+len(marker):])
}
