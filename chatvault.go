package main

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/log-go"
	"github.com/crooks/chatvault/blockcrypt"
	"github.com/crooks/chatvault/config"
	"github.com/crooks/chatvault/idlog"
	"github.com/crooks/chatvault/keymgr"
	"github.com/crooks/chatvault/msgstore"
	"github.com/luksen/maildir"
)

const (
	version      string = "0.1.0"
	dayLength           = 24 * time.Hour
	hexLineWrap         = 64
	unreadFormat        = "2006-01-02 15:04:05"
)

var (
	// flags - Command line flags
	flags *config.Flags
	// cfg - Config parameters
	cfg *config.Config
)

// fatal reports a setup error on stderr and exits
func fatal(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func main() {
	var err error
	flags = config.ParseFlags()
	if flags.Version {
		fmt.Println(version)
		os.Exit(0)
	}
	// Some config defaults are derived from flags so ParseConfig is a flags method
	cfg, err = flags.ParseConfig()
	if err != nil {
		// No logging is defined at this point so log the error to stderr
		fatal("Unable to parse config file: %v", err)
	}
	// If the debug flag is set, print the config and exit
	if flags.Debug {
		y, err := cfg.Debug()
		if err != nil {
			fatal("Debugging Error: %s", err)
		}
		fmt.Printf("%s\n", y)
		os.Exit(0)
	}

	// Set up logging
	loglevel, err := log.Atoi(cfg.General.Loglevel)
	if err != nil {
		fatal("%s: Unknown loglevel", cfg.General.Loglevel)
	}
	if cfg.General.LogToFile {
		logfile, err := os.OpenFile(cfg.Files.Logfile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err != nil {
			fatal("Unable to open logfile: %v", err)
		}
		defer logfile.Close()
		stdlog.SetOutput(logfile)
	}
	log.Current = log.StdLogger{Level: loglevel}

	// Inform the user which (if any) config file was used.
	if cfg.Files.Config != "" {
		log.Infof("Using config file: %s", cfg.Files.Config)
	} else {
		log.Warn("No config file was found. Resorting to defaults")
	}

	// Setup complete, time to do some work
	if flags.Keygen {
		keygen()
		return
	}
	if flags.Stdin {
		// Delivery into the spool doesn't need the key
		if err = deliver(maildir.Dir(cfg.Files.Maildir), os.Stdin); err != nil {
			fatal("%v", err)
		}
		return
	}

	key, err := keymgr.ReadSecret(cfg.Files.Keyfile)
	if err != nil {
		fatal("Unable to read secret key: %v", err)
	}
	cipher := blockcrypt.New(key)
	if flags.Encrypt {
		if err = encryptStream(cipher, os.Stdin, os.Stdout); err != nil {
			fatal("%v", err)
		}
		return
	}
	if flags.Decrypt {
		if err = decryptStream(cipher, os.Stdin, os.Stdout); err != nil {
			fatal("%v", err)
		}
		return
	}

	store, err := msgstore.Open(cfg.Files.MsgDB, cipher)
	if err != nil {
		fatal("%v", err)
	}
	defer store.Close()

	switch {
	case flags.Send:
		err = sendStdin(store, os.Stdin)
	case flags.Unread != "":
		err = printUnread(store, flags.Unread, os.Stdout)
	case flags.MarkRead != "":
		err = markRead(store, flags.MarkRead)
	default:
		err = runSpool(store)
	}
	if err != nil {
		log.Error(err)
		// Deferred closes must run before exit
		store.Close()
		os.Exit(1)
	}
}

// keygen writes a new secret key to the configured keyfile
func keygen() {
	key, err := blockcrypt.GenerateKey()
	if err != nil {
		fatal("Key generation failed: %v", err)
	}
	if err = keymgr.WriteSecret(cfg.Files.Keyfile, key); err != nil {
		fatal("%v", err)
	}
	log.Infof("Wrote new secret key to %s", cfg.Files.Keyfile)
}

// sendStdin stores the content of stdin as a message between the --from and
// --to users.
func sendStdin(store *msgstore.Store, r io.Reader) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	msg, err := store.Send(flags.From, flags.To, string(content), flags.Type)
	if err != nil {
		return err
	}
	fmt.Println(msg.ID)
	return nil
}

// printUnread writes each unread message for user to w
func printUnread(store *msgstore.Store, user string, w io.Writer) error {
	msgs, err := store.Unread(user)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		fmt.Fprintf(
			w,
			"%s %s [%s] %s: %s\n",
			m.ID,
			m.Sent.Format(unreadFormat),
			m.Type,
			m.SenderID,
			m.Content,
		)
	}
	return nil
}

// markRead takes a comma separated list of message IDs
func markRead(store *msgstore.Store, idList string) error {
	var ids []string
	for _, id := range strings.Split(idList, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	changed, err := store.MarkRead(ids)
	if err != nil {
		return err
	}
	log.Infof("Marked %d of %d messages read", changed, len(ids))
	return nil
}

// runSpool performs a single spool pass or, with --daemon, loops forever.
func runSpool(store *msgstore.Store) error {
	id, err := idlog.NewInstance(cfg.Files.IDlog)
	if err != nil {
		return fmt.Errorf("opening idlog: %w", err)
	}
	defer id.Close()
	s := &spool{
		dir:      maildir.Dir(cfg.Files.Maildir),
		store:    store,
		idlog:    id,
		idExpire: cfg.Store.IDexp,
		maxAge:   time.Duration(cfg.Store.MaxAge) * dayLength,
	}
	if flags.Expire {
		return s.housekeep()
	}
	if flags.Daemon {
		return s.loop(time.Duration(cfg.Daemon.Loop) * time.Second)
	}
	_, err = s.process()
	return err
}
