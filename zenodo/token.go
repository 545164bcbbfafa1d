package zenodo

import (
	"bufio"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// A TokenSource supplies the bearer credential a Client authenticates
// with. Returning an empty token is not an error; the client is then
// usable but unauthenticated, and the deposit API will refuse requests.
type TokenSource interface {
	Token(sandbox bool) (string, error)
}

// StaticToken returns a TokenSource that always supplies token.
func StaticToken(token string) TokenSource {
	return staticToken(token)
}

type staticToken string

func (t staticToken) Token(sandbox bool) (string, error) {
	return string(t), nil
}

// Token file keys. The sandbox and production installations use
// different credentials, so a single file can hold both.
const (
	keyProduction = "ACCESS_TOKEN"
	keySandbox    = "ACCESS_TOKEN-sandbox"
)

// A FileTokenSource reads the credential from a token file. The file is
// a sequence of lines of the form
//
//	KEY: VALUE
//
// where KEY is "ACCESS_TOKEN" for production or "ACCESS_TOKEN-sandbox"
// for the sandbox. Other lines are ignored.
//
// If Path is empty the file is ~/.zenodo_token, unless the environment
// variable named after the key holds an alternate path. A missing file
// or key is logged and yields an empty token, not an error.
type FileTokenSource struct {
	Path string
}

func (f *FileTokenSource) Token(sandbox bool) (string, error) {
	key := keyProduction
	if sandbox {
		key = keySandbox
	}
	path := f.Path
	if path == "" {
		path = os.Getenv(key)
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, ".zenodo_token")
	}
	file, err := os.Open(path)
	if err != nil {
		log.Printf("zenodo: no token was found, check your %s file", path)
		return "", nil
	}
	defer file.Close()
	config, err := ParseTokenFile(file)
	if err != nil {
		return "", err
	}
	token := config[key]
	if token == "" {
		log.Printf("zenodo: %s has no %s entry", path, key)
	}
	return token, nil
}

// ParseTokenFile reads "KEY: VALUE" lines from r and returns the
// recognized token entries. Lines without a colon, and keys other than
// the token keys, are skipped.
func ParseTokenFile(r io.Reader) (map[string]string, error) {
	result := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		i := strings.Index(line, ":")
		if i < 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		if key != keyProduction && key != keySandbox {
			continue
		}
		result[key] = strings.TrimSpace(line[i+1:])
	}
	return result, scanner.Err()
}
