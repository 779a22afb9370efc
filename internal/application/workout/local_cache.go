package workout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/ports"
)

type payload struct {
	SchemaVersion string          `json:"schemaVersion"`
	SavedAt       time.Time       `json:"savedAt"`
	Data          json.RawMessage `json:"data"`
}

// LocalCache mirrors each partition's record set into a key-value store and
// keeps a dirty flag per partition beside it. Storage problems never reach
// the caller: a failed read is a miss, a failed write is logged.
type LocalCache struct {
	kv  ports.KeyValueStore
	log ports.Logger
	now func() time.Time
}

// NewLocalCache wraps kv.
func NewLocalCache(kv ports.KeyValueStore, log ports.Logger) *LocalCache {
	return &LocalCache{kv: kv, log: log, now: time.Now}
}

// PayloadKey is the storage key for a partition snapshot.
func PayloadKey(p domain.Partition) string {
	return domain.LocalCacheKeyPrefix + string(p)
}

// DirtyKey is the storage key for a partition dirty flag.
func DirtyKey(p domain.Partition) string {
	return domain.DirtyKeyPrefix + string(p)
}

// Read returns the cached snapshot for p. Missing or malformed payloads are
// reported as absent.
func (c *LocalCache) Read(p domain.Partition) ([]domain.Record, bool) {
	raw, ok, err := c.kv.Get(PayloadKey(p))
	if err != nil {
		c.log.Warn("local cache read failed", map[string]interface{}{"partition": p, "error": err.Error()})
		return nil, false
	}
	if !ok {
		return nil, false
	}
	records, err := decodePayload(raw)
	if err != nil {
		c.log.Debug("ignoring local cache", map[string]interface{}{"partition": p, "error": err.Error()})
		return nil, false
	}
	for i := range records {
		records[i].Partition = p
	}
	return records, true
}

// Write replaces the snapshot for p with records, stamped with the schema
// version and the current time.
func (c *LocalCache) Write(p domain.Partition, records []domain.Record) {
	if records == nil {
		records = []domain.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		c.log.Warn("local cache encode failed", map[string]interface{}{"partition": p, "error": err.Error()})
		return
	}
	raw, err := json.Marshal(payload{
		SchemaVersion: domain.LocalCacheSchemaVersion,
		SavedAt:       c.now().UTC(),
		Data:          data,
	})
	if err != nil {
		c.log.Warn("local cache encode failed", map[string]interface{}{"partition": p, "error": err.Error()})
		return
	}
	if err := c.kv.Set(PayloadKey(p), raw); err != nil {
		c.log.Warn("local cache write failed", map[string]interface{}{"partition": p, "error": err.Error()})
	}
}

// SetDirty persists the dirty flag for p. A clean partition has no flag at all.
func (c *LocalCache) SetDirty(p domain.Partition, dirty bool) {
	var err error
	if dirty {
		err = c.kv.Set(DirtyKey(p), []byte("1"))
	} else {
		err = c.kv.Remove(DirtyKey(p))
	}
	if err != nil {
		c.log.Warn("dirty flag write failed", map[string]interface{}{"partition": p, "dirty": dirty, "error": err.Error()})
	}
}

// IsDirty reports the persisted dirty flag for p. Read errors count as clean.
func (c *LocalCache) IsDirty(p domain.Partition) bool {
	raw, ok, err := c.kv.Get(DirtyKey(p))
	if err != nil || !ok {
		return false
	}
	return string(raw) == "1"
}

// DirtyPartitions lists every partition whose dirty flag is set.
func (c *LocalCache) DirtyPartitions() []domain.Partition {
	keys, err := c.kv.Keys(domain.DirtyKeyPrefix)
	if err != nil {
		c.log.Warn("dirty flag scan failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	var out []domain.Partition
	for _, key := range keys {
		p := domain.Partition(strings.TrimPrefix(key, domain.DirtyKeyPrefix))
		if c.IsDirty(p) {
			out = append(out, p)
		}
	}
	return out
}

func decodePayload(raw []byte) ([]domain.Record, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedLocalCache, err)
	}
	data := bytes.TrimSpace(p.Data)
	if len(data) == 0 || data[0] != '[' {
		return nil, fmt.Errorf("%w: data is not a list", domain.ErrMalformedLocalCache)
	}
	var records []domain.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedLocalCache, err)
	}
	if records == nil {
		records = []domain.Record{}
	}
	return records, nil
}
