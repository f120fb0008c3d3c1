// Package idlog remembers the Message-IDs of spooled chat messages so a
// redelivered spool file is only stored once.
package idlog

import (
	"errors"
	"time"

	"github.com/dchest/blake2s"
	"github.com/syndtr/goleveldb/leveldb"
)

type IDLog struct {
	db *leveldb.DB // A level DB instance
}

func NewInstance(filename string) (i IDLog, err error) {
	i.db, err = leveldb.OpenFile(filename, nil)
	return
}

func (i IDLog) Close() error {
	return i.db.Close()
}

// hashKey reduces an arbitrary length Message-ID to a fixed size DB key.
func hashKey(id []byte) []byte {
	h, err := blake2s.New(nil)
	if err != nil {
		panic(err)
	}
	h.Write(id)
	return h.Sum(nil)
}

// Unique tests the existance of a key and inserts if it's not there.
// The data inserted is a Gob'd expiry date
func (i IDLog) Unique(id []byte, expire int) (unique bool, err error) {
	key := hashKey(id)
	_, err = i.db.Get(key, nil)
	if err == nil {
		/*
			The DB already contains the key we're trying to insert. This
			implies that we've already stored this message and don't want
			to store it again.
		*/
		return false, nil
	}
	if !errors.Is(err, leveldb.ErrNotFound) {
		// It's not an error we anticipated
		return
	}
	expireDate := time.Now().Add(time.Duration(24*expire) * time.Hour)
	insertTimestamp, err := expireDate.GobEncode()
	if err != nil {
		return
	}
	if err = i.db.Put(key, insertTimestamp, nil); err != nil {
		return
	}
	return true, nil
}

// Expire deletes every entry whose expiry date has passed.  It returns the
// number retained and the number deleted.
func (i IDLog) Expire() (count, deleted int, err error) {
	now := time.Now()
	iter := i.db.NewIterator(nil, nil)
	defer iter.Release()
	batch := new(leveldb.Batch)
	var timestamp time.Time
	for iter.Next() {
		if err = timestamp.GobDecode(iter.Value()); err != nil {
			return
		}
		if now.After(timestamp) {
			// The iterator reuses its key buffer
			key := append([]byte{}, iter.Key()...)
			batch.Delete(key)
			deleted++
		} else {
			count++
		}
	}
	if err = iter.Error(); err != nil {
		return
	}
	err = i.db.Write(batch, nil)
	return
}
