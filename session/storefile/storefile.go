// Package storefile persists the session to local disk: one structured JSON
// record, with a one-time migration path from the legacy bare-token file the
// previous console generation wrote. Persistence is best-effort; malformed
// content degrades to "no session" or an access-token-only legacy session,
// it never fails a Load.
//
// When a key is configured the record is encrypted at rest with AES-256-GCM,
// the key derived from the passphrase with HKDF-SHA-256 and the nonce
// prepended to the ciphertext.
package storefile

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/spasys/billing-console/session"
)

const (
	sessionFileName = "spa_session"
	legacyFileName  = "spa_token"

	keyDerivationInfo = "billing-console-session-store-v1"
)

var _ session.Store = (*Store)(nil)

// Store is a file-backed session.Store rooted in a single directory.
type Store struct {
	path       string
	legacyPath string
	aead       cipher.AEAD
}

// Option modifies the Store during construction.
type Option func(*Store) error

// WithEncryptionKey derives an AES-256-GCM key from the passphrase and
// encrypts the persisted record with it.
func WithEncryptionKey(passphrase []byte) Option {
	return func(s *Store) error {
		if len(passphrase) == 0 {
			return errors.New("[storefile.WithEncryptionKey] empty passphrase")
		}
		key := make([]byte, 32)
		kdf := hkdf.New(sha256.New, passphrase, nil, []byte(keyDerivationInfo))
		if _, err := io.ReadFull(kdf, key); err != nil {
			return fmt.Errorf("[storefile.WithEncryptionKey] key derivation: %w", err)
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return fmt.Errorf("[storefile.WithEncryptionKey] cipher: %w", err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return fmt.Errorf("[storefile.WithEncryptionKey] gcm: %w", err)
		}
		s.aead = aead
		return nil
	}
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, options ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("[storefile.New] mkdir: %w", err)
	}
	s := &Store{
		path:       filepath.Join(dir, sessionFileName),
		legacyPath: filepath.Join(dir, legacyFileName),
	}
	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Load reads the persisted session. A record that is not JSON at all is
// treated as a bare legacy access token; a record that parses but holds no
// token degrades to the legacy file. No current or legacy record means nil.
func (s *Store) Load() (*session.Session, error) {
	raw, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if sess := s.decode(raw); sess != nil {
			return sess, nil
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("[Store.Load] read: %w", err)
	}

	legacy, err := os.ReadFile(s.legacyPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("[Store.Load] read legacy: %w", err)
	}
	return bareTokenSession(string(legacy)), nil
}

// Save writes the structured record, or removes it when sess is nil. The
// legacy file is purged either way, so migration happens at most once.
func (s *Store) Save(sess *session.Session) error {
	// Purge first: even a failed structured write must not resurrect the
	// legacy token on the next Load.
	if err := removeIfExists(s.legacyPath); err != nil {
		return fmt.Errorf("[Store.Save] purge legacy: %w", err)
	}

	if sess == nil {
		if err := removeIfExists(s.path); err != nil {
			return fmt.Errorf("[Store.Save] remove: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("[Store.Save] marshal: %w", err)
	}
	if s.aead != nil {
		if data, err = s.seal(data); err != nil {
			return fmt.Errorf("[Store.Save] seal: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("[Store.Save] write: %w", err)
	}
	return nil
}

// decode turns raw file content into a session, degrading through the
// fallback chain: decrypt (when keyed), structured JSON, bare token. Only
// content that is not JSON qualifies as a bare token; a parsed record
// without a token yields nothing rather than a JSON blob as credential.
func (s *Store) decode(raw []byte) *session.Session {
	if s.aead != nil {
		plain, err := s.open(raw)
		if err != nil {
			// Wrong key or corrupt record: no session.
			return nil
		}
		raw = plain
	}

	var sess session.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		if s.aead != nil {
			// Decrypted content that is not a structured record is
			// corrupt, not a legacy token.
			return nil
		}
		return bareTokenSession(string(raw))
	}
	if !sess.Valid() {
		// Parsed but holds no usable token: a stale or foreign record,
		// never a bearer credential.
		return nil
	}
	return &sess
}

func (s *Store) seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plain, nil), nil
}

func (s *Store) open(sealed []byte) ([]byte, error) {
	if len(sealed) < s.aead.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	return s.aead.Open(nil, nonce, ciphertext, nil)
}

func bareTokenSession(raw string) *session.Session {
	accessToken := strings.TrimSpace(raw)
	if accessToken == "" {
		return nil
	}
	return &session.Session{AccessToken: accessToken}
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
