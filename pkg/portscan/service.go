package portscan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial/enumerator"
)

// allow tests to replace the OS port table
var listDetailedPorts = enumerator.GetDetailedPortsList

type Scanner struct {
	markers []string
}

// NewScanner returns a scanner matching any of markers.
// An empty marker list falls back to DefaultMarkers.
func NewScanner(markers []string) *Scanner {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	return &Scanner{markers: append([]string(nil), markers...)}
}

// ListCandidatePorts returns the ports whose description looks like a sensor controller.
// Enumeration problems are logged and produce an empty list, never an error.
func (s *Scanner) ListCandidatePorts() []CandidatePort {
	ports, err := listDetailedPorts()
	if err != nil {
		log.Warn().Err(err).Msg("Could not enumerate serial ports")
		return []CandidatePort{}
	}

	candidates := make([]CandidatePort, 0, len(ports))
	for _, p := range ports {
		if p == nil {
			continue
		}
		desc := describe(p)
		if s.isCandidate(desc) {
			candidates = append(candidates, CandidatePort{Port: p.Name, Description: desc})
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Port < candidates[j].Port })
	return candidates
}

// isCandidate is a plain case-sensitive substring test.
func (s *Scanner) isCandidate(description string) bool {
	for _, m := range s.markers {
		if m != "" && strings.Contains(description, m) {
			return true
		}
	}
	return false
}

func describe(p *enumerator.PortDetails) string {
	if !p.IsUSB {
		if p.Product != "" {
			return p.Product
		}
		return "n/a"
	}

	desc := p.Product
	if desc == "" {
		desc = fmt.Sprintf("USB Serial Device %s:%s", strings.ToUpper(p.VID), strings.ToUpper(p.PID))
	}
	if chip, ok := knownVendors[strings.ToUpper(p.VID)]; ok && !strings.Contains(desc, chip) {
		desc = fmt.Sprintf("%s (%s)", desc, chip)
	}
	return desc
}
