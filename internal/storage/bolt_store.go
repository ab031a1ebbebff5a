package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/elink/internal/domain"
	bolt "go.etcd.io/bbolt"
)

const (
	reservationBucket = "reservations"
	keySeparator      = "\x00"
)

// boltStore implements a Store backed by BoltDB.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	ttl             time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(reservationBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		ttl:             opts.TTL,
		cleanupInterval: opts.CleanupInterval,
		now:             time.Now,
	}
	store.lastCleanup.Store(store.now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Lookup returns the live reservation for accessionNum at endpoint. Expired
// entries are deleted and reported as absent.
func (b *boltStore) Lookup(endpoint, accessionNum string) (domain.Reservation, bool, error) {
	if b == nil || b.db == nil {
		return domain.Reservation{}, false, nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return domain.Reservation{}, false, err
	}

	var (
		res   domain.Reservation
		found bool
	)
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(reservationBucket))
		if bucket == nil {
			return fmt.Errorf("reservation bucket missing")
		}

		key := reservationKey(endpoint, accessionNum)
		value := bucket.Get(key)
		if value == nil {
			return nil
		}

		decoded, ok := decodeReservation(value)
		if !ok || decoded.Expired(now) {
			return bucket.Delete(key)
		}

		res, found = decoded, true
		return nil
	})
	return res, found, err
}

// Save stores res, stamping ReservedAt (when unset) and ExpiresAt.
func (b *boltStore) Save(res domain.Reservation) error {
	if b == nil || b.db == nil {
		return nil
	}
	if strings.TrimSpace(res.AccessionNum) == "" {
		return fmt.Errorf("reservation requires an accession number")
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	if res.ReservedAt.IsZero() {
		res.ReservedAt = now.UTC()
	}
	res.ExpiresAt = now.Add(b.ttl).UTC()

	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode reservation: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(reservationBucket))
		if bucket == nil {
			return fmt.Errorf("reservation bucket missing")
		}
		return bucket.Put(reservationKey(res.Endpoint, res.AccessionNum), payload)
	})
}

// maybeCleanupExpired removes expired reservations on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(reservationBucket))
		if bucket == nil {
			return fmt.Errorf("reservation bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			res, ok := decodeReservation(v)
			if !ok || res.Expired(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func reservationKey(endpoint, accessionNum string) []byte {
	return []byte(strings.TrimSpace(endpoint) + keySeparator + strings.TrimSpace(accessionNum))
}

func decodeReservation(value []byte) (domain.Reservation, bool) {
	var res domain.Reservation
	if err := json.Unmarshal(value, &res); err != nil {
		return domain.Reservation{}, false
	}
	return res, true
}
