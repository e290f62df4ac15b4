package raptor

import (
	"fmt"

	"gtfs-router/internal/geo"
	"gtfs-router/internal/ident"
)

// Visit is one stop the journey passes through, with a wall-clock time
// there: the boarded trip's departure for a Ride's Boarding visit, the
// arrival time otherwise.
type Visit struct {
	Stop ident.StopID
	Time geo.Seconds
}

// Ride is one public-transit leg of a Journey: board Route's Trip at
// Boarding and alight at Alighting.
type Ride struct {
	Route     ident.RouteID
	Trip      ident.TripID
	Boarding  Visit
	Alighting Visit
}

// Walk is one walking-transfer leg of a Journey.
type Walk struct {
	From Visit
	To   Visit
}

// Leg is either a Ride or a Walk. Exactly one of the two pointers is set.
type Leg struct {
	Ride *Ride
	Walk *Walk
}

// Journey is the result of a successful Find: an ordered sequence of ride
// and walk legs (two rides may follow each other directly) from the start
// stop the winning journey began at to the winning end stop.
type Journey struct {
	Legs    []Leg
	Rounds  int
	Arrival geo.Seconds
}

func (e *Engine) reconstruct(rounds [][]label, endRound int, endStop ident.StopID, departure, endArrival geo.Seconds) Journey {
	var legs []Leg
	stop := endStop
	round := endRound

	for round > 0 {
		lbl := rounds[round][stop]
		if lbl.viaRide {
			legs = append([]Leg{{Ride: &Ride{
				Route:     lbl.route,
				Trip:      lbl.trip,
				Boarding:  Visit{Stop: lbl.board, Time: geo.WallClock(departure, lbl.boardDeparture)},
				Alighting: Visit{Stop: stop, Time: geo.WallClock(departure, lbl.arrival)},
			}}}, legs...)
			stop = lbl.board
			round--
		} else if lbl.prev != stop && lbl.prev != ident.NoStop {
			fromLbl := rounds[round][lbl.prev]
			legs = append([]Leg{{Walk: &Walk{
				From: Visit{Stop: lbl.prev, Time: geo.WallClock(departure, fromLbl.arrival)},
				To:   Visit{Stop: stop, Time: geo.WallClock(departure, lbl.arrival)},
			}}}, legs...)
			stop = lbl.prev
			// a walk only starts from a stop whose label was set by a
			// ride in this same round, so the next iteration reads that
			// ride without changing rounds.
		} else {
			break
		}
	}

	return Journey{Legs: legs, Rounds: endRound, Arrival: geo.WallClock(departure, endArrival)}
}

// StopNamer resolves a StopID back to its GTFS stop_id for display. Accepting
// this narrow interface, rather than *ident.Registry, lets callers describe a
// Journey against whichever registry produced it, including one reached
// through a hot-swappable indirection.
type StopNamer interface {
	StopString(id ident.StopID) (string, error)
}

// Describe renders the journey as human-readable itinerary lines, in the
// spirit of a turn-by-turn trip summary: board/alight/walk instructions with
// wall-clock times and minute counts.
func (j Journey) Describe(reg StopNamer) []string {
	var lines []string
	for _, leg := range j.Legs {
		switch {
		case leg.Ride != nil:
			r := leg.Ride
			fromName, _ := reg.StopString(r.Boarding.Stop)
			toName, _ := reg.StopString(r.Alighting.Stop)
			lines = append(lines,
				fmt.Sprintf("Board route %d at %s (%s)", r.Route, fromName, geo.FormatTime(r.Boarding.Time)),
				fmt.Sprintf("Get off at %s at %s", toName, geo.FormatTime(r.Alighting.Time)),
			)
		case leg.Walk != nil:
			w := leg.Walk
			toName, _ := reg.StopString(w.To.Stop)
			minutes := (w.To.Time - w.From.Time) / 60
			if minutes < 0 {
				minutes += geo.SecondsPerDay / 60
			}
			lines = append(lines, fmt.Sprintf("Walk %d minutes to %s, arriving %s", minutes, toName, geo.FormatTime(w.To.Time)))
		}
	}
	return lines
}
