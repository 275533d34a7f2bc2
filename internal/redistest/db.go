package redistest

import (
	"sort"
	"time"
)

type kind int

const (
	kindString kind = iota
	kindHash
	kindList
	kindSet
	kindZSet
)

type entry struct {
	kind kind

	str    string
	fields []string // hash field order
	hash   map[string]string
	list   []string
	set    map[string]struct{}
	zset   map[string]float64

	expireAt time.Time
}

type db struct {
	keys map[string]*entry
	// versions counts modifications per key for WATCH. It outlives the
	// entry so that delete then re-create is still seen as a change.
	versions map[string]uint64
}

func newDB() *db {
	return &db{
		keys:     make(map[string]*entry),
		versions: make(map[string]uint64),
	}
}

func (d *db) version(key string) uint64 {
	return d.versions[key]
}

func (d *db) touch(key string) {
	d.versions[key]++
}

func (d *db) expireIfNeeded(key string) {
	e, ok := d.keys[key]
	if !ok || e.expireAt.IsZero() || now().Before(e.expireAt) {
		return
	}
	delete(d.keys, key)
	d.touch(key)
}

// get returns the live entry for key, or nil.
func (d *db) get(key string) *entry {
	d.expireIfNeeded(key)
	return d.keys[key]
}

// getOrCreate returns the entry for key, creating an empty one of kind k.
// It returns nil if key holds another kind.
func (d *db) getOrCreate(key string, k kind) *entry {
	e := d.get(key)
	if e == nil {
		e = &entry{kind: k}
		switch k {
		case kindHash:
			e.hash = make(map[string]string)
		case kindSet:
			e.set = make(map[string]struct{})
		case kindZSet:
			e.zset = make(map[string]float64)
		}
		d.keys[key] = e
		return e
	}
	if e.kind != k {
		return nil
	}
	return e
}

func (d *db) del(key string) bool {
	if d.get(key) == nil {
		return false
	}
	delete(d.keys, key)
	d.touch(key)
	return true
}

// dropIfEmpty removes containers that lost their last element.
func (d *db) dropIfEmpty(key string) {
	e, ok := d.keys[key]
	if !ok {
		return
	}
	var n int
	switch e.kind {
	case kindString:
		return
	case kindHash:
		n = len(e.hash)
	case kindList:
		n = len(e.list)
	case kindSet:
		n = len(e.set)
	case kindZSet:
		n = len(e.zset)
	}
	if n == 0 {
		delete(d.keys, key)
	}
}

func (d *db) flush() {
	for key := range d.keys {
		d.touch(key)
	}
	d.keys = make(map[string]*entry)
}

func (d *db) liveKeys() []string {
	keys := make([]string, 0, len(d.keys))
	for key := range d.keys {
		d.expireIfNeeded(key)
		if _, ok := d.keys[key]; ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (e *entry) zrange() []string {
	members := make([]string, 0, len(e.zset))
	for m := range e.zset {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		si, sj := e.zset[members[i]], e.zset[members[j]]
		if si != sj {
			return si < sj
		}
		return members[i] < members[j]
	})
	return members
}

// rangeIndexes converts Redis style start/stop, where negative values count
// from the end, into a slice range.
func rangeIndexes(start, stop int64, n int) (int, int, bool) {
	size := int64(n)
	if start < 0 {
		start += size
	}
	if stop < 0 {
		stop += size
	}
	if start < 0 {
		start = 0
	}
	if stop >= size {
		stop = size - 1
	}
	if start > stop || start >= size {
		return 0, 0, false
	}
	return int(start), int(stop) + 1, true
}
