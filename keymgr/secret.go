package keymgr

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/crooks/chatvault/blockcrypt"
)

const (
	dateFormat = "2006-01-02"
	beginCut   = "-----Begin Chatvault Secret Key-----"
	endCut     = "-----End Chatvault Secret Key-----"
)

var (
	// ErrNoKey indicates the file contained no complete key block.
	ErrNoKey = errors.New("no secret key found")
	// ErrKeyExists prevents an existing key file from being clobbered.
	ErrKeyExists = errors.New("key file already exists")
)

// WriteSecret creates filename and writes k to it in armored form.  An
// existing file is never overwritten; losing the key loses every stored
// message.  A failed write removes the partial file.
func WriteSecret(filename string, k *blockcrypt.Key) error {
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", filename, ErrKeyExists)
		}
		return err
	}
	err = writeSecret(f, k)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(filename)
		return fmt.Errorf("%s: %w", filename, err)
	}
	return nil
}

// writeSecret writes the armored key block to w
func writeSecret(w io.Writer, k *blockcrypt.Key) error {
	buf := bufio.NewWriter(w)
	fmt.Fprintln(buf, beginCut)
	fmt.Fprintf(buf, "Created: %s\n", time.Now().UTC().Format(dateFormat))
	fmt.Fprintln(buf, k.ExportHex())
	fmt.Fprintln(buf, endCut)
	return buf.Flush()
}

// ReadSecret returns the first valid key found in filename.
func ReadSecret(filename string) (*blockcrypt.Key, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var line string
	var key *blockcrypt.Key
	var lastErr error
	keyPhase := 0
	/* Key phases are:
	0 Expecting Begin cutmark
	1 Expecting Created date
	2 Expecting secret key
	3 Expecting End cutmark
	*/
	for scanner.Scan() {
		line = strings.TrimSpace(scanner.Text())
		switch keyPhase {
		case 0:
			if line == beginCut {
				keyPhase = 1
			}
		case 1:
			if !strings.HasPrefix(line, "Created: ") {
				lastErr = fmt.Errorf("%s: expected Created line", filename)
				keyPhase = 0
				continue
			}
			if _, err = time.Parse(dateFormat, line[9:]); err != nil {
				lastErr = fmt.Errorf("%s: malformed Created date: %w", filename, err)
				keyPhase = 0
				continue
			}
			keyPhase = 2
		case 2:
			key, err = blockcrypt.KeyFromHex(line)
			if err != nil {
				lastErr = fmt.Errorf("%s: %w", filename, err)
				keyPhase = 0
				continue
			}
			keyPhase = 3
		case 3:
			if line == endCut {
				return key, nil
			}
			lastErr = fmt.Errorf("%s: expected End cutmark", filename)
			keyPhase = 0
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoKey, lastErr)
	}
	return nil, fmt.Errorf("%s: %w", filename, ErrNoKey)
}
