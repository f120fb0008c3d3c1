package main

import (
	"fmt"
	"io"
	"net/mail"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Masterminds/log-go"
	"github.com/crooks/chatvault/idlog"
	"github.com/crooks/chatvault/msgstore"
	"github.com/luksen/maildir"
)

// spool reads chat messages delivered into a Maildir and stores them.
type spool struct {
	dir      maildir.Dir
	store    *msgstore.Store
	idlog    idlog.IDLog
	idExpire int           // Days to remember a Message-ID
	maxAge   time.Duration // Retention of read messages
}

// ensureMaildir creates the tmp, new and cur directories if required
func ensureMaildir(dir maildir.Dir) error {
	if err := dir.Create(); err != nil && !os.IsExist(err) {
		return fmt.Errorf("creating Maildir %s: %w", dir, err)
	}
	return nil
}

// deliver writes a raw message from r into the Maildir
func deliver(dir maildir.Dir, r io.Reader) error {
	if err := ensureMaildir(dir); err != nil {
		return err
	}
	newmsg, err := dir.NewDelivery()
	if err != nil {
		return err
	}
	content, err := io.ReadAll(r)
	if err != nil {
		newmsg.Abort()
		return err
	}
	if _, err = newmsg.Write(content); err != nil {
		newmsg.Abort()
		return err
	}
	return newmsg.Close()
}

// chatType returns the X-Chat-Type header, defaulting to private
func chatType(head mail.Header) string {
	t := strings.ToLower(strings.TrimSpace(head.Get("X-Chat-Type")))
	if t == "" {
		return msgstore.TypePrivate
	}
	return t
}

// process stores every unseen Maildir message and returns how many were
// stored.  Each spool file is purged once handled, whether or not it could be
// stored, so a poison message can't block the spool.
func (s *spool) process() (stored int, err error) {
	if err = ensureMaildir(s.dir); err != nil {
		return
	}
	keys, err := s.dir.Unseen()
	if err != nil {
		return
	}
	if len(keys) > 0 {
		log.Debugf("Reading %d messages from %s", len(keys), s.dir)
	}
	for _, key := range keys {
		if s.storeMessage(key) {
			stored++
		}
		if err := s.dir.Purge(key); err != nil {
			log.Warnf("%s: Cannot delete mail: %v", key, err)
		}
	}
	return
}

// storeMessage returns true if the message for key was written to the store.
func (s *spool) storeMessage(key string) bool {
	msg, err := s.dir.Message(key)
	if err != nil {
		log.Warnf("%s: Reading message failed with: %v", key, err)
		return false
	}
	if msgID := msg.Header.Get("Message-Id"); msgID != "" {
		unique, err := s.idlog.Unique([]byte(msgID), s.idExpire)
		if err != nil {
			log.Errorf("%s: Message-ID lookup failed: %v", key, err)
			return false
		}
		if !unique {
			log.Infof("%s: Ignoring duplicate Message-ID %s", key, msgID)
			return false
		}
	}
	sender := senderID(msg.Header.Get("From"))
	receiver := senderID(msg.Header.Get("To"))
	body, err := io.ReadAll(msg.Body)
	if err != nil {
		log.Warnf("%s: Reading body failed with: %v", key, err)
		return false
	}
	stored, err := s.store.Send(sender, receiver, strings.TrimRight(string(body), "\r\n"), chatType(msg.Header))
	if err != nil {
		log.Warnf("%s: Storing message failed: %v", key, err)
		return false
	}
	log.Infof("Stored message %s from %s to %s", stored.ID, sender, receiver)
	return true
}

// senderID extracts a user ID from a From/To header.  Chat IDs are plain
// strings but an address form ("Name <id>") is accepted.
func senderID(h string) string {
	h = strings.TrimSpace(h)
	if addr, err := mail.ParseAddress(h); err == nil {
		return addr.Address
	}
	return h
}

// housekeep expires old Message-IDs and read messages
func (s *spool) housekeep() error {
	count, deleted, err := s.idlog.Expire()
	if err != nil {
		return fmt.Errorf("expiring idlog: %w", err)
	}
	log.Infof("Message-ID log: Retained=%d, Deleted=%d", count, deleted)
	retained, deleted, err := s.store.Expire(s.maxAge)
	if err != nil {
		return fmt.Errorf("expiring messages: %w", err)
	}
	log.Infof("Message store: Retained=%d, Deleted=%d", retained, deleted)
	return nil
}

// loop processes the spool every interval until interrupted.
func (s *spool) loop(interval time.Duration) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Infof("Processing spool every %s", interval)
	for {
		if err := s.housekeep(); err != nil {
			log.Error(err)
		}
		if _, err := s.process(); err != nil {
			log.Warnf("Spool pass failed: %v", err)
		}
		select {
		case <-sig:
			log.Info("Shutting down")
			return nil
		case <-ticker.C:
		}
	}
}
