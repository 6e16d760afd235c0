// Command sealsecret produces the "enc:" values accepted by SMTP_PASSWORD.
//
//	sealsecret -genkey                      print a new MAIL_ENCRYPTION_KEY
//	echo -n "$PASS" | sealsecret            seal stdin with MAIL_ENCRYPTION_KEY
package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kevinaaaquil/readersync/utils"
)

var errEmptySecret = errors.New("nothing to seal on stdin")

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Getenv); err != nil {
		fmt.Fprintln(os.Stderr, "sealsecret:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer, getenv func(string) string) error {
	fs := flag.NewFlagSet("sealsecret", flag.ContinueOnError)
	genKey := fs.Bool("genkey", false, "print a new base64 AES-256 key and exit")
	keyFlag := fs.String("key", "", "base64 key (default $MAIL_ENCRYPTION_KEY)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *genKey {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return err
		}
		_, err := fmt.Fprintln(stdout, base64.StdEncoding.EncodeToString(key))
		return err
	}

	encoded := *keyFlag
	if encoded == "" {
		encoded = getenv("MAIL_ENCRYPTION_KEY")
	}
	key, err := utils.DecodeKey(encoded)
	if err != nil {
		return err
	}
	if key == nil {
		return utils.ErrKeyRequired
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return errEmptySecret
	}
	sealed, err := utils.Encrypt([]byte(secret), key)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, sealed)
	return err
}
