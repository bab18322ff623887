/*
DESCRIPTION
  graph.go provides Graph, the connected set of components (sensor, resizer,
  encoder and preview sink) that make up a still capture pipeline.

AUTHORS
  stillcam contributors

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package device

import (
	"errors"
	"fmt"
)

// Component names used by the standard still capture graph.
const (
	Sensor   = "sensor"
	Resizer  = "resizer"
	Encoder  = "encoder"
	Preview  = "preview"
	NullSink = "nullsink"
)

// Component is a node of a capture graph.
type Component interface {
	Name() string

	// Args returns the command line arguments that configure the component
	// for utilities driven by flags. May be nil.
	Args() []string

	// Close releases any resources held by the component.
	Close() error
}

// Stage is a Component that is configured entirely by flags and holds no
// resources.
type Stage struct {
	ID    string
	Flags []string
}

func (s Stage) Name() string   { return s.ID }
func (s Stage) Args() []string { return s.Flags }
func (s Stage) Close() error   { return nil }

// Link is a directed connection between two components.
type Link struct {
	From, To string
}

// Graph holds the components of a pipeline and the links between them.
// Components are kept in the order they were first connected, and are
// disposed of in reverse of that order.
type Graph struct {
	components []Component
	links      []Link
	closed     bool
}

// Connect adds a link from one component to another, adding either component
// to the graph if it is not already present.
func (g *Graph) Connect(from, to Component) error {
	if g.closed {
		return errors.New("cannot connect components of closed graph")
	}
	if from == nil || to == nil {
		return errors.New("cannot connect nil component")
	}
	if from.Name() == to.Name() {
		return fmt.Errorf("cannot connect %s to itself", from.Name())
	}
	g.add(from)
	g.add(to)
	g.links = append(g.links, Link{From: from.Name(), To: to.Name()})
	return nil
}

func (g *Graph) add(c Component) {
	for _, have := range g.components {
		if have.Name() == c.Name() {
			return
		}
	}
	g.components = append(g.components, c)
}

// Links returns the graph's links in the order they were made.
func (g *Graph) Links() []Link {
	return append([]Link(nil), g.links...)
}

// Args returns the arguments of all components in connection order.
func (g *Graph) Args() []string {
	var args []string
	for _, c := range g.components {
		args = append(args, c.Args()...)
	}
	return args
}

// Close closes every component in reverse connection order. Closing continues
// past failures; all failures are returned in a MultiError. Close is
// idempotent.
func (g *Graph) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true

	var errs MultiError
	for i := len(g.components) - 1; i >= 0; i-- {
		c := g.components[i]
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("could not close %s: %w", c.Name(), err))
		}
	}
	g.components = nil
	g.links = nil
	if len(errs) != 0 {
		return errs
	}
	return nil
}
