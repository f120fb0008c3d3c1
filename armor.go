package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"unicode"

	"github.com/crooks/chatvault/blockcrypt"
	"github.com/crooks/chatvault/linebreaker"
)

// armor writes a frame as hex, wrapped at hexLineWrap columns
func armor(w io.Writer, frame []byte) error {
	breaker := linebreaker.NewLineBreaker(w, hexLineWrap)
	if _, err := hex.NewEncoder(breaker).Write(frame); err != nil {
		return err
	}
	return breaker.Close()
}

// stripArmor decodes hex from r, ignoring any whitespace
func stripArmor(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	compact := bytes.Map(func(c rune) rune {
		if unicode.IsSpace(c) {
			return -1
		}
		return c
	}, raw)
	frame, err := hex.DecodeString(string(compact))
	if err != nil {
		return nil, fmt.Errorf("armored input is not valid hex: %w", err)
	}
	return frame, nil
}

func encryptStream(c *blockcrypt.Cipher, r io.Reader, w io.Writer) error {
	plain, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	frame, err := c.Encrypt(plain)
	if err != nil {
		return err
	}
	return armor(w, frame)
}

func decryptStream(c *blockcrypt.Cipher, r io.Reader, w io.Writer) error {
	frame, err := stripArmor(r)
	if err != nil {
		return err
	}
	plain, err := c.Decrypt(frame)
	if err != nil {
		return err
	}
	_, err = w.Write(plain)
	return err
}
