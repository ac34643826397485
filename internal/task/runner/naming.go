package runner

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	unitNamePrefix = "task-exec-"
	maxUnitNameLen = 63
)

// NameGenerator produces DNS-1123 compliant unit names that are unique
// within the process and, with high probability, across replicas.
type NameGenerator struct {
	seq atomic.Uint64
	now func() time.Time
}

func NewNameGenerator() *NameGenerator {
	return &NameGenerator{now: time.Now}
}

// Next returns task-exec-<taskID>-<suffix>. The task id segment is shortened
// when the full name would exceed 63 characters; the suffix is never cut.
func (g *NameGenerator) Next(taskID uuid.UUID) string {
	suffix := strconv.FormatInt(g.now().UnixMilli(), 36) +
		strconv.FormatUint(g.seq.Add(1), 36) +
		randomHex(2)

	id := taskID.String()
	if room := maxUnitNameLen - len(unitNamePrefix) - len(suffix) - 1; len(id) > room {
		id = strings.TrimRight(id[:room], "-")
	}
	return unitNamePrefix + id + "-" + suffix
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// fall back to uuid randomness, which panics only if the system source is broken
		u := uuid.New()
		copy(b, u[:])
	}
	return hex.EncodeToString(b)
}
