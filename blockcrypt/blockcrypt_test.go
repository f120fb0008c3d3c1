package blockcrypt

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"

	"pgregory.net/rapid"
)

func zeroCipher(t testing.TB) *Cipher {
	t.Helper()
	k, err := NewKey(make([]byte, KeySize))
	if err != nil {
		t.Fatal(err)
	}
	return New(k)
}

func randomCipher(t testing.TB) *Cipher {
	t.Helper()
	k, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	return New(k)
}

// frameMetadata opens the metadata of a frame produced by c.
func frameMetadata(t *testing.T, c *Cipher, frame []byte) *metadata {
	t.Helper()
	sealedMeta, _, err := decodeFrame(frame)
	if err != nil {
		t.Fatalf("decodeFrame failed: %v", err)
	}
	metaBytes, err := open(c.gcm, sealedMeta)
	if err != nil {
		t.Fatalf("Opening metadata failed: %v", err)
	}
	meta, err := decodeMetadata(metaBytes)
	if err != nil {
		t.Fatalf("decodeMetadata failed: %v", err)
	}
	return meta
}

func TestEmptyMessage(t *testing.T) {
	c := zeroCipher(t)
	frame, err := c.Encrypt([]byte{})
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	// Header, sealed metadata overhead and at least one block of AEAD output
	minLen := 2 + NonceSize + c.gcm.Overhead() + BlockSize
	if len(frame) < minLen {
		t.Fatalf("Frame too short.  Expected>=%d, Got=%d", minLen, len(frame))
	}
	plain, err := c.Decrypt(frame)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if len(plain) != 0 {
		t.Fatalf("Expected empty plaintext, Got=%q", plain)
	}
}

func TestHelloWorld(t *testing.T) {
	c := zeroCipher(t)
	plainText := "Hello, world!"
	frame, err := c.Encrypt([]byte(plainText))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	plain, err := c.Decrypt(frame)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if string(plain) != plainText {
		t.Fatalf("Round trip mismatch.  Expected=%q, Got=%q", plainText, plain)
	}
	meta := frameMetadata(t, c, frame)
	// 13 Bytes + 12 Byte nonce + 16 Byte tag
	if meta.originalLen != 41 {
		t.Fatalf("Incorrect original length.  Expected=41, Got=%d", meta.originalLen)
	}
	if len(meta.permutation) != 3 {
		t.Fatalf("Incorrect real block count.  Expected=3, Got=%d", len(meta.permutation))
	}
}

func TestMessageSizes(t *testing.T) {
	c := randomCipher(t)
	for _, n := range []int{1, 3, 4, 5, 15, 16, 17, 31, 32, 33, 255, 1000, 65536} {
		plain := bytes.Repeat([]byte{byte(n)}, n)
		frame, err := c.Encrypt(plain)
		if err != nil {
			t.Fatalf("%d Bytes: Encrypt failed: %v", n, err)
		}
		got, err := c.Decrypt(frame)
		if err != nil {
			t.Fatalf("%d Bytes: Decrypt failed: %v", n, err)
		}
		if !bytes.Equal(got, plain) {
			t.Fatalf("%d Bytes: round trip mismatch", n)
		}
	}
}

func TestDifferentKeys(t *testing.T) {
	c1 := randomCipher(t)
	c2 := randomCipher(t)
	frame, err := c1.Encrypt([]byte("Test"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	_, err = c2.Decrypt(frame)
	if !errors.Is(err, ErrCrypto) {
		t.Fatalf("Expected a crypto error, Got=%v", err)
	}
}

func TestTamper(t *testing.T) {
	c := randomCipher(t)
	plain := []byte("This is a secret message that needs encryption.")
	frame, err := c.Encrypt(plain)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	for i := range frame {
		tampered := append([]byte{}, frame...)
		tampered[i] ^= 0x01
		got, err := c.Decrypt(tampered)
		if err != nil {
			if k := KindOf(err); k != Validation && k != Crypto {
				t.Fatalf("Byte %d: unexpected error kind %v: %v", i, k, err)
			}
			continue
		}
		// Decoys and the zero padding of the last real block aren't
		// authenticated, but they never reach the plaintext.
		if !bytes.Equal(got, plain) {
			t.Fatalf("Byte %d: tampered frame decrypted to wrong plaintext", i)
		}
	}
}

func TestTruncatedFrame(t *testing.T) {
	c := randomCipher(t)
	frame, err := c.Encrypt([]byte("Truncate me"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	for n := 0; n < len(frame); n++ {
		_, err := c.Decrypt(frame[:n])
		if err == nil {
			t.Fatalf("Frame truncated to %d Bytes decrypted", n)
		}
		if k := KindOf(err); k != Validation && k != Crypto {
			t.Fatalf("Truncated to %d: unexpected error kind %v", n, k)
		}
	}
}

func TestMetadataLengthOverrun(t *testing.T) {
	c := zeroCipher(t)
	frame := []byte{0x01, 0x00}
	frame = append(frame, make([]byte, 100)...)
	_, err := c.Decrypt(frame)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected a validation error, Got=%v", err)
	}
}

func TestNondeterministicFrames(t *testing.T) {
	c := randomCipher(t)
	plain := []byte("Same message twice, same key, different frames please")
	f1, err := c.Encrypt(plain)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	f2, err := c.Encrypt(plain)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if bytes.Equal(f1, f2) {
		t.Fatal("Two encryptions produced identical frames")
	}
	if len(f1) != len(f2) {
		t.Fatalf("Frame lengths differ.  First=%d, Second=%d", len(f1), len(f2))
	}
	for _, f := range [][]byte{f1, f2} {
		got, err := c.Decrypt(f)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if !bytes.Equal(got, plain) {
			t.Fatal("Round trip mismatch")
		}
	}
	m1 := frameMetadata(t, c, f1)
	m2 := frameMetadata(t, c, f2)
	if !equalInts(m1.permutation, m2.permutation) {
		t.Fatal("Permutation differs between frames of equal length")
	}
	if !equalInts(m1.padding, m2.padding) {
		t.Fatal("Padding positions differ between frames of equal length")
	}
	// Content plays no part in the layout, only its length
	other := bytes.Repeat([]byte{'x'}, len(plain))
	f3, err := c.Encrypt(other)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	m3 := frameMetadata(t, c, f3)
	if !equalInts(m1.padding, m3.padding) || !equalInts(m1.permutation, m3.permutation) {
		t.Fatal("Layout depends on message content")
	}
}

func TestMessageTooLarge(t *testing.T) {
	c := randomCipher(t)
	_, err := c.Encrypt(make([]byte, 1<<20))
	if !errors.Is(err, ErrEncoding) {
		t.Fatalf("Expected an encoding error, Got=%v", err)
	}
}

func TestConcurrentUse(t *testing.T) {
	c := randomCipher(t)
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				plain := []byte(fmt.Sprintf("worker %d message %d", w, i))
				frame, err := c.Encrypt(plain)
				if err != nil {
					errs <- err
					return
				}
				got, err := c.Decrypt(frame)
				if err != nil {
					errs <- err
					return
				}
				if !bytes.Equal(got, plain) {
					errs <- fmt.Errorf("worker %d: round trip mismatch", w)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		keyBytes := rapid.SliceOfN(rapid.Byte(), KeySize, KeySize).Draw(t, "key")
		plain := rapid.SliceOfN(rapid.Byte(), 0, 4096).Draw(t, "plaintext")
		k, err := NewKey(keyBytes)
		if err != nil {
			t.Fatalf("NewKey failed: %v", err)
		}
		c := New(k)
		frame, err := c.Encrypt(plain)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		got, err := c.Decrypt(frame)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if !bytes.Equal(got, plain) {
			t.Fatalf("Round trip mismatch for %d Bytes", len(plain))
		}
		if (len(frame)-2-len(frameMetadataBytes(frame)))%BlockSize != 0 {
			t.Fatal("Block region not aligned")
		}
	})
}

// frameMetadataBytes returns the sealed metadata of a well formed frame.
func frameMetadataBytes(frame []byte) []byte {
	meta, _, _ := decodeFrame(frame)
	return meta
}

func FuzzDecrypt(f *testing.F) {
	c := zeroCipher(f)
	for _, msg := range []string{"", "Hello, world!", "A slightly longer message spanning blocks"} {
		frame, err := c.Encrypt([]byte(msg))
		if err != nil {
			f.Fatal(err)
		}
		f.Add(frame)
	}
	f.Add([]byte{})
	f.Add([]byte{0xff, 0xff, 0x00})

	f.Fuzz(func(t *testing.T, frame []byte) {
		plain, err := c.Decrypt(frame)
		if err != nil {
			if KindOf(err) == 0 {
				t.Fatalf("Decrypt returned a foreign error: %v", err)
			}
			return
		}
		// Anything that decrypts must re-encrypt and decrypt to the same
		again, err := c.Encrypt(plain)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		got, err := c.Decrypt(again)
		if err != nil || !bytes.Equal(got, plain) {
			t.Fatalf("Re-encryption round trip failed: %v", err)
		}
	})
}
