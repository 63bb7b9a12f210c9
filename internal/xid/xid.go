package xid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// New returns a prefixed identifier, e.g. "sale-9f2c…". IDs are opaque;
// the prefix only helps when reading logs.
func New(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%s", prefix, id)
}
