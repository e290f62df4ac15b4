// Package natsrpc exposes the routing engine over NATS request/reply: a
// client publishes a FindRequest to "<prefix>.find" and waits for the
// correlated FindResponse on its own inbox.
package natsrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"gtfs-router/internal/geo"
	"gtfs-router/internal/ident"
	"gtfs-router/internal/raptor"
)

// Finder is the subset of *raptor.Engine the server needs. Taking an
// interface, rather than *raptor.Engine directly, lets a caller hot-swap the
// engine backing a running server (e.g. on a feed refresh) behind an
// atomic.Pointer without the server ever holding a stale registry.
type Finder interface {
	Find(starts, ends []ident.StopID, departure geo.Seconds) (raptor.Journey, error)
}

// Resolver is the subset of *ident.Registry the server needs to translate
// GTFS stop ids and describe results. Swappable for the same reason as
// Finder: a feed refresh builds a new registry alongside the new engine.
type Resolver interface {
	Stop(gtfsStopID string) (ident.StopID, error)
	StopString(id ident.StopID) (string, error)
	RouteKeyOf(id ident.RouteID) (ident.RouteKey, error)
}

// FindRequest is the wire shape of a routing query. StartStops/EndStops are
// GTFS stop_id strings; DepartureTime is "HH:MM".
type FindRequest struct {
	RequestID     string   `json:"requestId,omitempty"`
	StartStops    []string `json:"startStops"`
	EndStops      []string `json:"endStops"`
	DepartureTime string   `json:"departureTime"`
}

// LegDTO is one wire-format leg of a FindResponse's itinerary.
type LegDTO struct {
	Kind        string `json:"kind"` // "ride" or "walk"
	FromStop    string `json:"fromStop"`
	ToStop      string `json:"toStop"`
	DepartTime  string `json:"departTime,omitempty"`
	ArriveTime  string `json:"arriveTime,omitempty"`
	RouteID     string `json:"routeId,omitempty"`
}

// FindResponse is the wire shape of a routing result.
type FindResponse struct {
	RequestID   string   `json:"requestId"`
	Error       string   `json:"error,omitempty"`
	ArrivalTime string   `json:"arrivalTime,omitempty"`
	Legs        []LegDTO `json:"legs,omitempty"`
	Description []string `json:"description,omitempty"`
}

// Metrics is the subset of metrics.Collector the server reports against.
// Defined here, not imported from metrics, so this package has no
// compile-time dependency on the Prometheus client.
type Metrics interface {
	FindRequestInc()
	FindFailureInc(reason string)
	FindDurationObserve(d time.Duration)
	RoundsObserve(n float64)
	NATSSetConnected(connected bool)
}

// Server answers FindRequests over NATS for a single already-built Engine.
type Server struct {
	nc       *nats.Conn
	sub      *nats.Subscription
	engine   Finder
	registry Resolver
	metrics  Metrics
	timeout  time.Duration

	wg sync.WaitGroup
}

// Serve connects to url and starts answering FindRequests published to
// subject within a queue group (so multiple router instances share load).
// The returned Server must be stopped with Close.
func Serve(url, subject, queueGroup string, engine Finder, registry Resolver, metrics Metrics, timeout time.Duration) (*Server, error) {
	s := &Server{engine: engine, registry: registry, metrics: metrics, timeout: timeout}

	nc, err := nats.Connect(url,
		nats.Name("gtfs-router"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			s.setConnected(false)
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			s.setConnected(true)
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			s.setConnected(false)
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("natsrpc: connect: %w", err)
	}
	s.nc = nc
	s.setConnected(true)

	sub, err := nc.QueueSubscribe(subject, queueGroup, s.handle)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("natsrpc: subscribe %s: %w", subject, err)
	}
	s.sub = sub
	return s, nil
}

// Close unsubscribes, waits for in-flight handlers to finish, and drains the
// connection.
func (s *Server) Close() {
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
	s.wg.Wait()
	if s.nc != nil {
		_ = s.nc.Drain()
		s.nc.Close()
	}
}

func (s *Server) setConnected(connected bool) {
	if s.metrics != nil {
		s.metrics.NATSSetConnected(connected)
	}
}

func (s *Server) handle(msg *nats.Msg) {
	s.wg.Add(1)
	defer s.wg.Done()

	if s.metrics != nil {
		s.metrics.FindRequestInc()
	}
	start := time.Now()

	var req FindRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.reply(msg, FindResponse{Error: fmt.Sprintf("malformed request: %v", err)}, "invalid_request")
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	resp, reason := s.find(ctx, req)
	if s.metrics != nil {
		s.metrics.FindDurationObserve(time.Since(start))
	}
	s.reply(msg, resp, reason)
}

func (s *Server) find(ctx context.Context, req FindRequest) (FindResponse, string) {
	resp := FindResponse{RequestID: req.RequestID}

	departure, err := geo.ParseHHMM(req.DepartureTime)
	if err != nil {
		resp.Error = err.Error()
		return resp, "invalid_request"
	}

	starts, err := s.resolveStops(req.StartStops)
	if err != nil {
		resp.Error = err.Error()
		return resp, "unknown_stop"
	}
	ends, err := s.resolveStops(req.EndStops)
	if err != nil {
		resp.Error = err.Error()
		return resp, "unknown_stop"
	}

	done := make(chan struct{})
	var journey raptor.Journey
	var findErr error
	go func() {
		journey, findErr = s.engine.Find(starts, ends, departure)
		close(done)
	}()
	select {
	case <-ctx.Done():
		resp.Error = "request timed out"
		return resp, "timeout"
	case <-done:
	}

	if findErr != nil {
		resp.Error = findErr.Error()
		return resp, reasonFor(findErr)
	}

	if s.metrics != nil {
		s.metrics.RoundsObserve(float64(journey.Rounds))
	}
	resp.ArrivalTime = geo.FormatTime(journey.Arrival)
	resp.Description = journey.Describe(s.registry)
	resp.Legs = make([]LegDTO, 0, len(journey.Legs))
	for _, leg := range journey.Legs {
		resp.Legs = append(resp.Legs, toDTO(s.registry, leg))
	}
	return resp, ""
}

func (s *Server) resolveStops(ids []string) ([]ident.StopID, error) {
	out := make([]ident.StopID, 0, len(ids))
	for _, id := range ids {
		sid, err := s.registry.Stop(id)
		if err != nil {
			return nil, err
		}
		out = append(out, sid)
	}
	return out, nil
}

func toDTO(reg Resolver, leg raptor.Leg) LegDTO {
	switch {
	case leg.Ride != nil:
		from, _ := reg.StopString(leg.Ride.Boarding.Stop)
		to, _ := reg.StopString(leg.Ride.Alighting.Stop)
		key, _ := reg.RouteKeyOf(leg.Ride.Route)
		return LegDTO{
			Kind:       "ride",
			FromStop:   from,
			ToStop:     to,
			DepartTime: geo.FormatTime(leg.Ride.Boarding.Time),
			ArriveTime: geo.FormatTime(leg.Ride.Alighting.Time),
			RouteID:    key.GTFSRouteID,
		}
	case leg.Walk != nil:
		from, _ := reg.StopString(leg.Walk.From.Stop)
		to, _ := reg.StopString(leg.Walk.To.Stop)
		return LegDTO{
			Kind:       "walk",
			FromStop:   from,
			ToStop:     to,
			DepartTime: geo.FormatTime(leg.Walk.From.Time),
			ArriveTime: geo.FormatTime(leg.Walk.To.Time),
		}
	default:
		return LegDTO{}
	}
}

func (s *Server) reply(msg *nats.Msg, resp FindResponse, reason string) {
	if reason != "" && s.metrics != nil {
		s.metrics.FindFailureInc(reason)
	}
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("natsrpc: marshal response: %v", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		log.Printf("natsrpc: respond: %v", err)
	}
}

func reasonFor(err error) string {
	switch err.(type) {
	case *raptor.UnreachableError:
		return "unreachable"
	case *raptor.UnknownStopError:
		return "unknown_stop"
	case *raptor.SameEndpointsError:
		return "same_endpoints"
	case *raptor.NotConfiguredError:
		return "not_configured"
	default:
		return "internal"
	}
}
