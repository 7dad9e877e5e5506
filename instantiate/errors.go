package instantiate

import (
	"go.uber.org/multierr"
)

// Collector accumulates errors when a decode runs with error collection.
// A nil *Collector collects nothing: Record returns its argument so the
// caller fails fast.
type Collector struct {
	err error
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Record stores err and returns nil, or returns err unchanged when c is nil.
func (c *Collector) Record(err error) error {
	if err == nil {
		return nil
	}
	if c == nil {
		return err
	}
	c.err = multierr.Append(c.err, err)
	return nil
}

// Collecting reports whether errors are being collected.
func (c *Collector) Collecting() bool {
	return c != nil
}

// Err returns the combined error, or nil.
func (c *Collector) Err() error {
	if c == nil {
		return nil
	}
	return c.err
}

// Errors returns the recorded errors in order.
func (c *Collector) Errors() []error {
	if c == nil {
		return nil
	}
	return multierr.Errors(c.err)
}

// Len returns the number of recorded errors.
func (c *Collector) Len() int {
	return len(c.Errors())
}
