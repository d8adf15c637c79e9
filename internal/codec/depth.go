package codec

import (
	"fmt"

	"github.com/zmcp/odata-codec/internal/models"
)

// Depth guards the mutual recursion of entity, link and value codecs.
// One Depth is created per encode/decode call.
type Depth struct {
	cur int
	max int
}

// NewDepth creates a guard with the given limit
func NewDepth(max int) *Depth {
	return &Depth{max: max}
}

// Enter descends one level, failing with ErrMaxDepth past the limit
func (d *Depth) Enter() error {
	d.cur++
	if d.cur > d.max {
		return fmt.Errorf("%w (%d)", models.ErrMaxDepth, d.max)
	}
	return nil
}

// Leave ascends one level
func (d *Depth) Leave() {
	d.cur--
}

// Remaining returns how many levels are left, used as the tree reader limit
func (d *Depth) Remaining() int {
	return d.max - d.cur
}
