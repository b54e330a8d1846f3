// Package persist appends engine facts to a BadgerDB journal and replays
// them at startup. The journal is an effect consumer like any other: it
// watches every fact and performs its writes out-of-band on a worker
// goroutine. It is append-only; removals are not journaled, matching the
// tombstone convention for logical deletion.
package persist

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/quadmill/quadmill/quads"
	"github.com/quadmill/quadmill/quads/engine"
	"github.com/quadmill/quadmill/quads/pattern"
)

// Key namespaces. Log entries are 'q' + 8-byte big-endian sequence with the
// encoded tuple as value, so replay preserves insertion order. The dedup
// index 'd' + encoded tuple keeps re-attachment over a populated engine from
// appending the same fact twice.
const (
	logPrefix   = byte('q')
	dedupPrefix = byte('d')
)

var seqKey = []byte("journal-seq")

// batchSize caps how many queued tuples one badger update absorbs.
const batchSize = 128

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal closed")

// Journal is a badger-backed append-only fact log.
type Journal struct {
	db      *badger.DB
	seq     *badger.Sequence
	log     *zap.Logger
	unwatch engine.Unwatch
	queue   chan quads.Tuple
	done    chan struct{}
	closed  bool
}

// Open opens or creates a journal at path. A nil logger disables logging.
func Open(path string, log *zap.Logger) (*Journal, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's own chatter stays out of the zap stream
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	seq, err := db.GetSequence(seqKey, batchSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal sequence: %w", err)
	}
	return &Journal{
		db:  db,
		seq: seq,
		log: log,
	}, nil
}

// Replay feeds every journaled tuple through the engine's Add, in append
// order, cascading as usual. Call before Attach so replayed tuples do not
// travel through the queue again. Returns the number of tuples replayed.
func (j *Journal) Replay(e *engine.Engine) (int, error) {
	if j.closed {
		return 0, ErrClosed
	}
	count := 0
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 1000
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte{logPrefix}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				t, err := DecodeTuple(val)
				if err != nil {
					return fmt.Errorf("corrupt journal entry: %w", err)
				}
				if err := e.Add(t); err != nil {
					return fmt.Errorf("replay %s: %w", t, err)
				}
				count++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return count, err
	}
	j.log.Info("journal replayed", zap.Int("tuples", count))
	return count, nil
}

// Attach watches every fact in the engine and streams additions to the
// journal worker. The watch replays the store's current contents first, so
// attaching over a populated engine snapshots it; the dedup index drops
// facts already journaled. A full queue applies backpressure to the cascade
// rather than losing facts.
func (j *Journal) Attach(e *engine.Engine) error {
	if j.closed {
		return ErrClosed
	}
	if j.queue != nil {
		return fmt.Errorf("journal already attached")
	}
	j.queue = make(chan quads.Tuple, 8*batchSize)
	j.done = make(chan struct{})
	go j.worker()

	everything := pattern.New(pattern.Template{
		E: pattern.Wildcard{},
		A: pattern.Wildcard{},
		V: pattern.Wildcard{},
		C: pattern.Wildcard{},
	})
	unwatch, err := e.WatchNamed("journal", everything, func(m *pattern.Match) ([]quads.Tuple, error) {
		j.queue <- m.Tuples()[0]
		return nil, nil
	})
	if err != nil {
		close(j.queue)
		<-j.done
		j.queue = nil
		return fmt.Errorf("attach journal: %w", err)
	}
	j.unwatch = unwatch
	return nil
}

// Close detaches, drains the queue and closes the database.
func (j *Journal) Close() error {
	if j.closed {
		return ErrClosed
	}
	j.closed = true
	if j.unwatch != nil {
		j.unwatch()
	}
	if j.queue != nil {
		close(j.queue)
		<-j.done
	}
	if err := j.seq.Release(); err != nil {
		j.log.Warn("journal sequence release failed", zap.Error(err))
	}
	return j.db.Close()
}

// worker batches queued tuples into badger updates until the queue closes.
func (j *Journal) worker() {
	defer close(j.done)
	batch := make([]quads.Tuple, 0, batchSize)
	for t := range j.queue {
		batch = append(batch[:0], t)
	drain:
		for len(batch) < batchSize {
			select {
			case t2, ok := <-j.queue:
				if !ok {
					break drain
				}
				batch = append(batch, t2)
			default:
				break drain
			}
		}
		j.write(batch)
	}
}

// write appends one batch, skipping tuples the dedup index already holds.
// Failures are logged, not propagated: the engine has long since moved on.
func (j *Journal) write(batch []quads.Tuple) {
	appended := 0
	err := j.db.Update(func(txn *badger.Txn) error {
		for _, t := range batch {
			enc := EncodeTuple(t)
			dkey := append([]byte{dedupPrefix}, enc...)
			switch _, err := txn.Get(dkey); err {
			case nil:
				continue // already journaled
			case badger.ErrKeyNotFound:
			default:
				return err
			}

			n, err := j.seq.Next()
			if err != nil {
				return err
			}
			key := make([]byte, 9)
			key[0] = logPrefix
			binary.BigEndian.PutUint64(key[1:], n)
			if err := txn.Set(key, enc); err != nil {
				return err
			}
			if err := txn.Set(dkey, nil); err != nil {
				return err
			}
			appended++
		}
		return nil
	})
	if err != nil {
		j.log.Error("journal write failed",
			zap.Int("tuples", len(batch)),
			zap.Error(err))
		return
	}
	if appended > 0 {
		j.log.Debug("journal batch written", zap.Int("tuples", appended))
	}
}
