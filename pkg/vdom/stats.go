package vdom

import "fmt"

// Stats counts the primitives issued during one or more passes.
type Stats struct {
	Materialized int
	Inserted     int
	Moved        int
	Removed      int
	Updated      int
}

// Structural returns the number of insert, move and remove operations.
func (s Stats) Structural() int {
	return s.Inserted + s.Moved + s.Removed
}

// Add returns the sum of two Stats.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Materialized: s.Materialized + o.Materialized,
		Inserted:     s.Inserted + o.Inserted,
		Moved:        s.Moved + o.Moved,
		Removed:      s.Removed + o.Removed,
		Updated:      s.Updated + o.Updated,
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("inserted=%d moved=%d removed=%d updated=%d materialized=%d",
		s.Inserted, s.Moved, s.Removed, s.Updated, s.Materialized)
}

// Counter wraps an Applier and counts the calls that succeed.
type Counter struct {
	Applier
	Stats Stats
}

// NewCounter wraps a.
func NewCounter(a Applier) *Counter {
	return &Counter{Applier: a}
}

// Materialize implements Applier.
func (c *Counter) Materialize(node *VNode) (Handle, error) {
	h, err := c.Applier.Materialize(node)
	if err == nil {
		c.Stats.Materialized++
	}
	return h, err
}

// InsertBefore implements Applier.
func (c *Counter) InsertBefore(parent, node, ref Handle) error {
	if err := c.Applier.InsertBefore(parent, node, ref); err != nil {
		return err
	}
	c.Stats.Inserted++
	return nil
}

// RemoveChild implements Applier.
func (c *Counter) RemoveChild(parent, node Handle) error {
	if err := c.Applier.RemoveChild(parent, node); err != nil {
		return err
	}
	c.Stats.Removed++
	return nil
}

// MoveBefore implements Applier.
func (c *Counter) MoveBefore(parent, node, ref Handle) error {
	if err := c.Applier.MoveBefore(parent, node, ref); err != nil {
		return err
	}
	c.Stats.Moved++
	return nil
}

// UpdateInPlace implements Applier.
func (c *Counter) UpdateInPlace(prev, next *VNode, h Handle) error {
	if err := c.Applier.UpdateInPlace(prev, next, h); err != nil {
		return err
	}
	c.Stats.Updated++
	return nil
}

// RemoveAllChildren implements Clearer. It forwards to the wrapped applier
// when it is a Clearer and falls back to one RemoveChild per node.
func (c *Counter) RemoveAllChildren(parent Handle, nodes []Handle) error {
	if cl, ok := c.Applier.(Clearer); ok {
		if err := cl.RemoveAllChildren(parent, nodes); err != nil {
			return err
		}
		c.Stats.Removed += len(nodes)
		return nil
	}
	for _, n := range nodes {
		if err := c.RemoveChild(parent, n); err != nil {
			return err
		}
	}
	return nil
}

// Reset zeroes the counters.
func (c *Counter) Reset() {
	c.Stats = Stats{}
}
