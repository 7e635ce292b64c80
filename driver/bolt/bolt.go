// Package bolt implements a persistent single-process chicache driver on bbolt.
//
// Values are stored as an 8-byte big-endian deadline (unix nanoseconds,
// 0 = never) followed by the raw bytes. Expired entries read as misses and are
// removed lazily or by the optional cleanup loop. Mask erasure runs inside one
// write transaction, so it is atomic with respect to other writers.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/unkn0wn-root/chicache/driver"
	"github.com/unkn0wn-root/chicache/mask"
)

const deadlineLen = 8

type Store struct {
	db     *bolt.DB
	bucket []byte
	now    func() time.Time

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var (
	_ driver.Driver       = (*Store)(nil)
	_ driver.Expirer      = (*Store)(nil)
	_ driver.KeyLister    = (*Store)(nil)
	_ driver.AtomicEraser = (*Store)(nil)
)

type Config struct {
	Path            string
	Bucket          string        // "" => "chicache"
	OpenTimeout     time.Duration // file lock wait; 0 => 1s
	CleanupInterval time.Duration // 0 disables the background sweep
}

// Open initializes or opens a Store at cfg.Path.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("bolt driver: path is required")
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	bucket := []byte("chicache")
	if cfg.Bucket != "" {
		bucket = []byte(cfg.Bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db, bucket: bucket, now: time.Now}
	if cfg.CleanupInterval > 0 {
		s.ticker = time.NewTicker(cfg.CleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go s.cleanupLoop()
	}
	return s, nil
}

func (s *Store) expired(v []byte, now int64) bool {
	if len(v) < deadlineLen {
		return true
	}
	d := int64(binary.BigEndian.Uint64(v[:deadlineLen]))
	return d > 0 && now >= d
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	var (
		out   []byte
		found bool
		stale bool
	)
	now := s.now().UnixNano()
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		if s.expired(v, now) {
			stale = true
			return nil
		}
		found = true
		out = append([]byte{}, v[deadlineLen:]...) // v is only valid inside the tx
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if stale {
		_ = s.deleteIfExpired(key)
	}
	return out, found, nil
}

func (s *Store) deleteIfExpired(key string) error {
	now := s.now().UnixNano()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if v := b.Get([]byte(key)); v != nil && s.expired(v, now) {
			return b.Delete([]byte(key))
		}
		return nil
	})
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	buf := make([]byte, deadlineLen+len(value))
	binary.BigEndian.PutUint64(buf[:deadlineLen], uint64(s.deadline(ttl)))
	copy(buf[deadlineLen:], value)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), buf)
	})
}

func (s *Store) deadline(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return s.now().Add(ttl).UnixNano()
}

func (s *Store) Del(_ context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	now := s.now().UnixNano()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		v := b.Get([]byte(key))
		if v == nil || s.expired(v, now) {
			return nil
		}
		buf := append([]byte{}, v...)
		binary.BigEndian.PutUint64(buf[:deadlineLen], uint64(s.deadline(ttl)))
		return b.Put([]byte(key), buf)
	})
}

// scan visits live keys matching p in byte order, starting at the mask's
// literal prefix.
func (s *Store) scan(tx *bolt.Tx, p mask.Pattern, now int64, fn func(k []byte) error) error {
	c := tx.Bucket(s.bucket).Cursor()
	prefix := []byte(p.Prefix())
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if s.expired(v, now) || !p.Match(string(k)) {
			continue
		}
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, p mask.Pattern) ([]string, error) {
	var out []string
	now := s.now().UnixNano()
	err := s.db.View(func(tx *bolt.Tx) error {
		return s.scan(tx, p, now, func(k []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out = append(out, string(k))
			return nil
		})
	})
	return out, err
}

func (s *Store) EraseMatching(_ context.Context, p mask.Pattern) (int, error) {
	n := 0
	now := s.now().UnixNano()
	err := s.db.Update(func(tx *bolt.Tx) error {
		var doomed [][]byte
		if err := s.scan(tx, p, now, func(k []byte) error {
			doomed = append(doomed, append([]byte{}, k...))
			return nil
		}); err != nil {
			return err
		}
		b := tx.Bucket(s.bucket)
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(doomed)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Sweep deletes every expired entry and returns how many were removed.
func (s *Store) Sweep() (int, error) {
	n := 0
	now := s.now().UnixNano()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var doomed [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			if s.expired(v, now) {
				doomed = append(doomed, append([]byte{}, k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(doomed)
		return nil
	})
	return n, err
}

func (s *Store) cleanupLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C:
			_, _ = s.Sweep()
		case <-s.stopCh:
			return
		}
	}
}

// Close stops the cleanup loop and closes the database. Safe to call twice.
func (s *Store) Close(_ context.Context) error {
	var err error
	s.once.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop()
			s.wg.Wait()
		}
		err = s.db.Close()
	})
	return err
}
