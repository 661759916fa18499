package vaultd

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"lukechampine.com/blake3"
)

// ErrAuditChainBroken reports a record whose digest does not match its
// contents or predecessor.
var ErrAuditChainBroken = errors.New("vaultd: audit chain broken")

// OutcomeOK marks a committed operation in the audit trail. Failed attempts
// record the policy error code instead.
const OutcomeOK = "ok"

// AuditRecord is one operation attempt. Records form a hash chain ordered by
// Seq; Hash covers every other column plus PrevHash.
type AuditRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Seq       uint64    `gorm:"uniqueIndex;not null" json:"seq"`
	Operation string    `gorm:"index;not null" json:"operation"`
	Vault     string    `gorm:"index" json:"vault"`
	Caller    string    `json:"caller"`
	Outcome   string    `gorm:"index;not null" json:"outcome"`
	Amount    string    `json:"amount,omitempty"`
	Events    string    `json:"events,omitempty"`
	PrevHash  string    `gorm:"size:64" json:"prevHash"`
	Hash      string    `gorm:"size:64;not null" json:"hash"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName pins the audit table name.
func (AuditRecord) TableName() string { return "vault_audit_records" }

// AuditEntry is the caller-supplied part of a record.
type AuditEntry struct {
	Operation string
	Vault     string
	Caller    string
	Outcome   string
	Amount    string
	Events    []AuditEvent
}

// AuditEvent is the serialized form of an emitted vault event.
type AuditEvent struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// AuditFilter narrows List results.
type AuditFilter struct {
	Vault    string
	AfterSeq uint64
	Limit    int
}

// AuditLog appends hash-chained operation records to a SQL store.
type AuditLog struct {
	db    *gorm.DB
	mu    sync.Mutex
	clock func() time.Time
}

// OpenAuditLog opens the audit store named by dsn. postgres:// URLs and
// keyword DSNs containing host= use PostgreSQL; anything else is handed to
// sqlite.
func OpenAuditLog(dsn string) (*AuditLog, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("vaultd: audit dsn required")
	}
	var dialector gorm.Dialector
	if isPostgresDSN(dsn) {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("vaultd: open audit store: %w", err)
	}
	return NewAuditLog(db)
}

func isPostgresDSN(dsn string) bool {
	lower := strings.ToLower(dsn)
	return strings.HasPrefix(lower, "postgres://") ||
		strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=")
}

// NewAuditLog migrates the audit schema on db.
func NewAuditLog(db *gorm.DB) (*AuditLog, error) {
	if db == nil {
		return nil, fmt.Errorf("vaultd: audit db required")
	}
	if err := db.AutoMigrate(&AuditRecord{}); err != nil {
		return nil, fmt.Errorf("vaultd: migrate audit store: %w", err)
	}
	return &AuditLog{db: db, clock: time.Now}, nil
}

// Append stores entry as the next record of the chain.
func (a *AuditLog) Append(ctx context.Context, entry AuditEntry) (*AuditRecord, error) {
	if a == nil || a.db == nil {
		return nil, fmt.Errorf("vaultd: audit log unavailable")
	}
	events := ""
	if len(entry.Events) > 0 {
		encoded, err := json.Marshal(entry.Events)
		if err != nil {
			return nil, fmt.Errorf("vaultd: encode audit events: %w", err)
		}
		events = string(encoded)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	record := &AuditRecord{
		ID:        uuid.New(),
		Seq:       1,
		Operation: entry.Operation,
		Vault:     entry.Vault,
		Caller:    entry.Caller,
		Outcome:   entry.Outcome,
		Amount:    entry.Amount,
		Events:    events,
		CreatedAt: a.clock().UTC().Truncate(time.Microsecond),
	}
	var last AuditRecord
	err := a.db.WithContext(ctx).Order("seq desc").Limit(1).Take(&last).Error
	switch {
	case err == nil:
		record.Seq = last.Seq + 1
		record.PrevHash = last.Hash
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("vaultd: load audit head: %w", err)
	}
	record.Hash = recordDigest(record)
	if err := a.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("vaultd: append audit record: %w", err)
	}
	return record, nil
}

// List returns records in chain order.
func (a *AuditLog) List(ctx context.Context, filter AuditFilter) ([]AuditRecord, error) {
	query := a.db.WithContext(ctx).Order("seq asc")
	if filter.Vault != "" {
		query = query.Where("vault = ?", filter.Vault)
	}
	if filter.AfterSeq > 0 {
		query = query.Where("seq > ?", filter.AfterSeq)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var records []AuditRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("vaultd: list audit records: %w", err)
	}
	return records, nil
}

// VerifyChain recomputes every digest and link. It returns the number of
// records checked.
func (a *AuditLog) VerifyChain(ctx context.Context) (int, error) {
	var records []AuditRecord
	if err := a.db.WithContext(ctx).Order("seq asc").Find(&records).Error; err != nil {
		return 0, fmt.Errorf("vaultd: load audit chain: %w", err)
	}
	prev := ""
	for i := range records {
		record := &records[i]
		if record.Seq != uint64(i+1) {
			return i, fmt.Errorf("%w: gap before seq %d", ErrAuditChainBroken, record.Seq)
		}
		if record.PrevHash != prev {
			return i, fmt.Errorf("%w: seq %d does not link to its predecessor", ErrAuditChainBroken, record.Seq)
		}
		if recordDigest(record) != record.Hash {
			return i, fmt.Errorf("%w: seq %d digest mismatch", ErrAuditChainBroken, record.Seq)
		}
		prev = record.Hash
	}
	return len(records), nil
}

// Close releases the underlying connection pool.
func (a *AuditLog) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func recordDigest(r *AuditRecord) string {
	payload := strings.Join([]string{
		r.ID.String(),
		fmt.Sprintf("%d", r.Seq),
		r.Operation,
		r.Vault,
		r.Caller,
		r.Outcome,
		r.Amount,
		r.Events,
		r.PrevHash,
		fmt.Sprintf("%d", r.CreatedAt.UnixMicro()),
	}, "\x1f")
	sum := blake3.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
