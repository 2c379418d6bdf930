package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	memdb "github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/twitter/scd/scheduler/domain"
)

const (
	recordsTable = "records"
	idIndex      = "id"
	keyIndex     = "key"
)

type memRecord struct {
	ID       string
	Category string
	Key      string
	Seq      uint64
	Time     time.Time
	Fields   map[string]string
}

type opKind int

const (
	opStore opKind = iota
	opRemove
)

type pendingOp struct {
	kind     opKind
	category string
	rec      Record
}

type memHandle struct {
	name       string
	autocommit bool
	ops        []pendingOp
}

// memStore keeps records in a go-memdb database. Writes are buffered per handle and
// applied in a single write transaction on Commit.
type memStore struct {
	db *memdb.MemDB

	mu      sync.Mutex
	handles map[Handle]*memHandle
	nextH   Handle
	seq     uint64
}

func NewMemStore() (Store, error) {
	db, err := memdb.NewMemDB(memSchema())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &memStore{db: db, handles: map[Handle]*memHandle{}}, nil
}

func memSchema() *memdb.DBSchema {
	indexes := make(map[string]*memdb.IndexSchema)
	indexes[idIndex] = &memdb.IndexSchema{
		Name:    idIndex,
		Unique:  true,
		Indexer: &memdb.StringFieldIndex{Field: "ID"},
	}
	indexes[keyIndex] = &memdb.IndexSchema{
		Name:   keyIndex,
		Unique: false,
		Indexer: &memdb.CompoundIndex{
			Indexes: []memdb.Indexer{
				&memdb.StringFieldIndex{Field: "Category"},
				&memdb.StringFieldIndex{Field: "Key"},
			},
		},
	}
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			recordsTable: {
				Name:    recordsTable,
				Indexes: indexes,
			},
		},
	}
}

func (m *memStore) handle(h Handle) (*memHandle, error) {
	mh, ok := m.handles[h]
	if !ok {
		return nil, errors.Wrapf(domain.ErrBadParameter, "unknown store handle %d", h)
	}
	return mh, nil
}

func (m *memStore) Open(name string, props map[string]string) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextH++
	m.handles[m.nextH] = &memHandle{name: name, autocommit: props[PropAutocommit] == "true"}
	return m.nextH, nil
}

// Close drops the handle along with any uncommitted writes.
func (m *memStore) Close(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.handle(h); err != nil {
		return err
	}
	delete(m.handles, h)
	return nil
}

func (m *memStore) Store(h Handle, category string, rec Record) error {
	return m.queue(h, pendingOp{kind: opStore, category: category, rec: rec})
}

func (m *memStore) Remove(h Handle, category, key string) error {
	return m.queue(h, pendingOp{kind: opRemove, category: category, rec: Record{Key: key}})
}

func (m *memStore) queue(h Handle, op pendingOp) error {
	m.mu.Lock()
	mh, err := m.handle(h)
	if err == nil {
		mh.ops = append(mh.ops, op)
	}
	m.mu.Unlock()
	if err != nil || !mh.autocommit {
		return err
	}
	return m.Commit(h)
}

// Fetch sees committed records only.
func (m *memStore) Fetch(h Handle, category, key string) ([]Record, error) {
	m.mu.Lock()
	_, err := m.handle(h)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	txn := m.db.Txn(false)
	defer txn.Abort()
	iter, err := txn.Get(recordsTable, keyIndex, category, key)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var found []*memRecord
	for obj := iter.Next(); obj != nil; obj = iter.Next() {
		found = append(found, obj.(*memRecord))
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Seq < found[j].Seq })
	out := make([]Record, 0, len(found))
	for _, r := range found {
		out = append(out, Record{Key: r.Key, Time: r.Time, Fields: copyFields(r.Fields)})
	}
	return out, nil
}

func (m *memStore) Commit(h Handle) error {
	m.mu.Lock()
	mh, err := m.handle(h)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	ops := mh.ops
	mh.ops = nil
	m.mu.Unlock()

	txn := m.db.Txn(true)
	for _, op := range ops {
		switch op.kind {
		case opStore:
			m.mu.Lock()
			m.seq++
			seq := m.seq
			m.mu.Unlock()
			err = txn.Insert(recordsTable, &memRecord{
				ID:       fmt.Sprintf("%s/%s/%d", op.category, op.rec.Key, seq),
				Category: op.category,
				Key:      op.rec.Key,
				Seq:      seq,
				Time:     op.rec.Time,
				Fields:   copyFields(op.rec.Fields),
			})
		case opRemove:
			_, err = txn.DeleteAll(recordsTable, keyIndex, op.category, op.rec.Key)
		}
		if err != nil {
			txn.Abort()
			return errors.Wrapf(domain.ErrTransport, "commit on %s: %v", mh.name, err)
		}
	}
	txn.Commit()
	return nil
}

func (m *memStore) Rollback(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mh, err := m.handle(h)
	if err != nil {
		return err
	}
	mh.ops = nil
	return nil
}

func copyFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
