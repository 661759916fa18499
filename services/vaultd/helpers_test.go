package vaultd

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"devquestvault/core/state"
	"devquestvault/storage"
)

// testRent makes the storage reserve equal to the vault record size.
var testRent = state.RentParams{PerByte: 1, ExemptionBytes: 0, Multiplier: 1}

const testReserve = 660

func testID(fill byte) [32]byte {
	var id [32]byte
	for i := range id {
		id[i] = fill
	}
	return id
}

var (
	testAdmin    = testID(0x11)
	testPayee    = testID(0x22)
	testOutsider = testID(0x33)
	testOperator = testID(0xEE)
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestAudit(t *testing.T) *AuditLog {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	audit, err := NewAuditLog(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = audit.Close() })
	return audit
}

func newTestService(t *testing.T, clock *fakeClock, opts ...Option) *Service {
	t.Helper()
	base := []Option{WithClock(clock.Now)}
	svc, err := NewService(storage.NewMemDB(), testRent, append(base, opts...)...)
	require.NoError(t, err)
	return svc
}
