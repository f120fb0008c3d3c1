package crandom

import (
	urand "crypto/rand"
	"encoding/hex"
	"fmt"
)

// Read fills b from the system CSPRNG.
func Read(b []byte) error {
	read, err := urand.Read(b)
	if err != nil {
		return err
	}
	if read != len(b) {
		return fmt.Errorf(
			"Insufficient entropy.  Wanted=%d, Got=%d",
			len(b),
			read,
		)
	}
	return nil
}

// Randbytes returns n Bytes of random data.  It panics if the system can't
// supply them; callers that can recover should use Read.
func Randbytes(n int) (b []byte) {
	b = make([]byte, n)
	err := Read(b)
	if err != nil {
		panic(err)
	}
	return
}

// Hex returns n random Bytes as a lowercase hex string of 2n chars.
func Hex(n int) string {
	return hex.EncodeToString(Randbytes(n))
}
