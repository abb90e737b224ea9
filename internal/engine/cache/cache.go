// Package cache is a content-addressed disk store for API responses. It sits
// in front of every billable call; any failure degrades to a miss or a no-op.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultTTL is how long a response stays valid.
	DefaultTTL = 24 * time.Hour

	// CredentialParam is stripped from params before hashing.
	CredentialParam = "key"

	entryExt = ".json"
)

// Params are the query parameters of a cached request.
type Params map[string]string

// Outcome classifies a lookup.
type Outcome int

const (
	Miss Outcome = iota
	Hit
	Error
)

func (o Outcome) String() string {
	switch o {
	case Hit:
		return "hit"
	case Error:
		return "error"
	default:
		return "miss"
	}
}

// Result is the outcome of a lookup. Err is set only for Error and is
// informational: callers treat Error exactly like Miss.
type Result struct {
	Outcome  Outcome
	Response json.RawMessage
	Err      error
}

// Entry is the on-disk record.
type Entry struct {
	CachedAt float64         `json:"cached_at"` // unix seconds
	URL      string          `json:"url"`
	Response json.RawMessage `json:"response"`
}

type Cache struct {
	dir    string
	ttl    time.Duration
	logger *log.Logger
	now    func() time.Time
}

// New opens a cache rooted at dir, creating it if needed. A non-positive ttl
// selects DefaultTTL. Failure to create the directory is not fatal; every
// operation will simply miss.
func New(dir string, ttl time.Duration, logger *log.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Printf("CACHE_ERROR mkdir dir=%s err=%v", dir, err)
	}
	return &Cache{dir: dir, ttl: ttl, logger: logger, now: time.Now}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// TTL returns the configured expiry.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Key derives the credential-independent cache key for a request.
func Key(url string, params Params) string {
	clean := make(map[string]string, len(params))
	for k, v := range params {
		if k == CredentialParam {
			continue
		}
		clean[k] = v
	}
	// encoding/json sorts map keys, which gives the canonical form.
	canonical, _ := json.Marshal(clean)
	sum := sha256.Sum256([]byte(url + "|" + string(canonical)))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+entryExt)
}

// Lookup returns the cached response for (url, params) as a Result.
// Expired entries are deleted as a side effect.
func (c *Cache) Lookup(url string, params Params) Result {
	key := Key(url, params)
	p := c.path(key)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Outcome: Miss}
		}
		return c.fail("read", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return c.fail("decode", key, err)
	}
	if len(entry.Response) == 0 {
		return c.fail("decode", key, fmt.Errorf("entry has no response"))
	}

	cachedAt := time.Unix(0, int64(entry.CachedAt*float64(time.Second)))
	if c.now().Sub(cachedAt) > c.ttl {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			c.logger.Printf("CACHE_ERROR op=expire key=%s err=%v", key, err)
		}
		return Result{Outcome: Miss}
	}

	return Result{Outcome: Hit, Response: entry.Response}
}

// Get is Lookup reduced to (response, ok).
func (c *Cache) Get(url string, params Params) (json.RawMessage, bool) {
	r := c.Lookup(url, params)
	if r.Outcome != Hit {
		return nil, false
	}
	return r.Response, true
}

func (c *Cache) fail(op, key string, err error) Result {
	c.logger.Printf("CACHE_ERROR op=%s key=%s err=%v", op, key, err)
	return Result{Outcome: Error, Err: err}
}

// Put stores response for (url, params). The entry is written to a temp file
// and renamed into place, so a concurrent reader sees either the old entry or
// the new one. Errors are logged and dropped.
func (c *Cache) Put(url string, params Params, response json.RawMessage) {
	key := Key(url, params)
	entry := Entry{
		CachedAt: float64(c.now().UnixNano()) / float64(time.Second),
		URL:      url,
		Response: response,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Printf("CACHE_ERROR op=encode key=%s err=%v", key, err)
		return
	}

	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		c.logger.Printf("CACHE_ERROR op=write key=%s err=%v", key, err)
		return
	}
	tmpName := tmp.Name()
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpName)
		c.logger.Printf("CACHE_ERROR op=write key=%s err=%v", key, firstErr(werr, cerr))
		return
	}
	if err := os.Rename(tmpName, c.path(key)); err != nil {
		os.Remove(tmpName)
		c.logger.Printf("CACHE_ERROR op=rename key=%s err=%v", key, err)
	}
}

// Clear removes every entry. Per-file failures are skipped.
func (c *Cache) Clear() int {
	removed := 0
	for _, name := range c.entries() {
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil {
			c.logger.Printf("CACHE_ERROR op=clear file=%s err=%v", name, err)
			continue
		}
		removed++
	}
	return removed
}

// Size returns the number of entries on disk, expired ones included.
func (c *Cache) Size() int {
	return len(c.entries())
}

// Bytes returns the total size of the entries on disk.
func (c *Cache) Bytes() int64 {
	var total int64
	for _, name := range c.entries() {
		if fi, err := os.Stat(filepath.Join(c.dir, name)); err == nil {
			total += fi.Size()
		}
	}
	return total
}

func (c *Cache) entries() []string {
	des, err := os.ReadDir(c.dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, de := range des {
		if de.IsDir() || !strings.HasSuffix(de.Name(), entryExt) {
			continue
		}
		names = append(names, de.Name())
	}
	return names
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
