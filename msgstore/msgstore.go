// Package msgstore persists chat messages with their bodies sealed.  Content
// is encrypted and hex encoded before it reaches the database; it is only
// decrypted again when a receiver collects unread messages.
package msgstore

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/log-go"
	"github.com/crooks/chatvault/crandom"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	TypePrivate = "private"
	TypeGroup   = "group"
)

var (
	ErrInvalidType = errors.New("message type must be private or group")
	ErrMissingID   = errors.New("sender and receiver IDs are required")
	ErrNotFound    = errors.New("message not found")
)

/*
Key layout
m/<id>                          Gob'd Message
u/<receiver>\x00<nanos><id>     Unread index entry.  Value is <id>.
*/
var (
	msgPrefix    = []byte("m/")
	unreadPrefix = []byte("u/")
)

// Sealer protects message content.  *blockcrypt.Cipher satisfies it.
type Sealer interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(frame []byte) ([]byte, error)
}

// Message is a single chat message.  Content holds the hex encoded frame
// while stored and the plaintext once returned by Unread.
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	Content    string
	Type       string
	Sent       time.Time
	Read       bool
	ReadAt     time.Time
}

type Store struct {
	db     *leveldb.DB
	sealer Sealer
	// Serializes read-modify-write cycles on message records
	mu sync.Mutex
}

// Open opens (or creates) the leveldb message store in dir.
func Open(dir string, sealer Sealer) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("opening message store %s: %w", dir, err)
	}
	return &Store{db: db, sealer: sealer}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func msgKey(id string) []byte {
	return append(append([]byte{}, msgPrefix...), id...)
}

func receiverPrefix(receiver string) []byte {
	p := append([]byte{}, unreadPrefix...)
	p = append(p, receiver...)
	return append(p, 0)
}

// unreadKey sorts by receiver and then by send time.
func unreadKey(m *Message) []byte {
	k := receiverPrefix(m.ReceiverID)
	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(m.Sent.UnixNano()))
	k = append(k, ts...)
	return append(k, m.ID...)
}

func encodeMessage(m *Message) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := gob.NewEncoder(buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeMessage(b []byte) (*Message, error) {
	m := new(Message)
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(m); err != nil {
		return nil, err
	}
	return m, nil
}

func validID(id string) bool {
	return strings.TrimSpace(id) != "" && !strings.ContainsRune(id, 0)
}

// Send seals content and stores it as an unread message from sender to
// receiver.  The returned Message carries the stored (hex) content.
func (s *Store) Send(sender, receiver, content, msgType string) (*Message, error) {
	if msgType != TypePrivate && msgType != TypeGroup {
		return nil, fmt.Errorf("%q: %w", msgType, ErrInvalidType)
	}
	if !validID(sender) || !validID(receiver) {
		return nil, ErrMissingID
	}
	frame, err := s.sealer.Encrypt([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("sealing message content: %w", err)
	}
	m := &Message{
		ID:         crandom.Hex(16),
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    hex.EncodeToString(frame),
		Type:       msgType,
		Sent:       time.Now().UTC(),
	}
	rec, err := encodeMessage(m)
	if err != nil {
		return nil, err
	}
	batch := new(leveldb.Batch)
	batch.Put(msgKey(m.ID), rec)
	batch.Put(unreadKey(m), []byte(m.ID))
	if err = s.db.Write(batch, nil); err != nil {
		return nil, fmt.Errorf("storing message: %w", err)
	}
	log.Debugf("Stored %s message %s from %s to %s", msgType, m.ID, sender, receiver)
	return m, nil
}

// Get returns the stored record for id.  Content is not decrypted.
func (s *Store) Get(id string) (*Message, error) {
	rec, err := s.db.Get(msgKey(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	return decodeMessage(rec)
}

// Unread returns the unread messages addressed to receiver, oldest first,
// with content decrypted.  Messages that can't be decoded or decrypted are
// logged and left out.
func (s *Store) Unread(receiver string) ([]Message, error) {
	iter := s.db.NewIterator(util.BytesPrefix(receiverPrefix(receiver)), nil)
	defer iter.Release()
	msgs := []Message{}
	for iter.Next() {
		id := string(iter.Value())
		m, err := s.Get(id)
		if err != nil {
			log.Warnf("%s: Unread index points to unreadable message: %v", id, err)
			continue
		}
		frame, err := hex.DecodeString(m.Content)
		if err != nil {
			log.Warnf("%s: Stored content is not valid hex: %v", id, err)
			continue
		}
		plain, err := s.sealer.Decrypt(frame)
		if err != nil {
			log.Warnf("%s: Decrypting message failed: %v", id, err)
			continue
		}
		m.Content = string(plain)
		msgs = append(msgs, *m)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead flags each known, unread id as read and returns how many changed.
// Unknown ids are ignored.
func (s *Store) MarkRead(ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	batch := new(leveldb.Batch)
	changed := 0
	// Get reads committed records, not the pending batch
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		m, err := s.Get(id)
		if errors.Is(err, ErrNotFound) {
			log.Debugf("%s: Ignoring unknown message ID", id)
			continue
		} else if err != nil {
			return 0, err
		}
		if m.Read {
			continue
		}
		batch.Delete(unreadKey(m))
		m.Read = true
		m.ReadAt = now
		rec, err := encodeMessage(m)
		if err != nil {
			return 0, err
		}
		batch.Put(msgKey(id), rec)
		changed++
	}
	if err := s.db.Write(batch, nil); err != nil {
		return 0, fmt.Errorf("marking messages read: %w", err)
	}
	return changed, nil
}

// Expire deletes read messages that were read more than maxAge ago.  It
// returns the number of messages retained and deleted.
func (s *Store) Expire(maxAge time.Duration) (retained, deleted int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	iter := s.db.NewIterator(util.BytesPrefix(msgPrefix), nil)
	defer iter.Release()
	batch := new(leveldb.Batch)
	for iter.Next() {
		var m *Message
		m, err = decodeMessage(iter.Value())
		if err != nil {
			return
		}
		if m.Read && m.ReadAt.Before(cutoff) {
			batch.Delete(msgKey(m.ID))
			deleted++
		} else {
			retained++
		}
	}
	if err = iter.Error(); err != nil {
		return
	}
	err = s.db.Write(batch, nil)
	return
}
