// Package varstore keeps named script variables and persists them as a
// zstd-compressed JSON lines file. Region values are stored by identity
// through a regions.Registry and rehydrated on load.
package varstore

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"regionhooks.ai/internal/regions"
)

const fileVersion = 1

var ErrBadValue = errors.New("unsupported variable value")

type Options struct {
	// DropStale skips variables whose region no longer exists instead of
	// failing the whole load. Other decode failures still fail it.
	DropStale bool
}

type header struct {
	Version int `json:"version"`
}

type line struct {
	Name   string          `json:"name"`
	Region *regions.Record `json:"region,omitempty"`
	Value  any             `json:"value,omitempty"`
}

type Store struct {
	reg  *regions.Registry
	log  *log.Logger
	opts Options

	mu   sync.RWMutex
	vars map[string]any
	// held are region records whose kind has no registered provider. They
	// are not visible as variables but are saved back unchanged.
	held map[string]regions.Record
}

func New(reg *regions.Registry, logger *log.Logger, opts Options) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{reg: reg, log: logger, opts: opts, vars: map[string]any{}, held: map[string]regions.Record{}}
}

// Set stores v under name. Values are regions, strings, booleans or numbers;
// integers are kept as float64.
func (s *Store) Set(name string, v any) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("set: empty variable name")
	}
	v, err := normalize(v)
	if err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = v
	delete(s.held, name)
	return nil
}

func normalize(v any) (any, error) {
	switch x := v.(type) {
	case regions.Region:
		if x == nil {
			return nil, ErrBadValue
		}
		return x, nil
	case string, bool:
		return x, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: %v", ErrBadValue, x)
		}
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrBadValue, v)
	}
}

func (s *Store) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[strings.TrimSpace(name)]
	return v, ok
}

// Region returns the variable if it holds a region.
func (s *Store) Region(name string) (regions.Region, bool) {
	v, ok := s.Get(name)
	if !ok {
		return nil, false
	}
	r, ok := v.(regions.Region)
	return r, ok
}

func (s *Store) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = strings.TrimSpace(name)
	delete(s.vars, name)
	delete(s.held, name)
}

// Held lists variables kept only as records because no provider for their
// kind is registered.
func (s *Store) Held() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.held))
	for k := range s.held {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.vars))
	for k := range s.vars {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Save writes every variable to path, replacing the file atomically.
func (s *Store) Save(path string) error {
	lines, err := s.encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, lines); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) encode() ([]line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.vars)+len(s.held))
	for k := range s.vars {
		names = append(names, k)
	}
	for k := range s.held {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]line, 0, len(names))
	for _, name := range names {
		if rec, ok := s.held[name]; ok {
			out = append(out, line{Name: name, Region: &rec})
			continue
		}
		v := s.vars[name]
		if r, ok := v.(regions.Region); ok {
			rec, err := s.reg.Encode(r)
			if err != nil {
				return nil, fmt.Errorf("save %s: %w", name, err)
			}
			out = append(out, line{Name: name, Region: &rec})
			continue
		}
		out = append(out, line{Name: name, Value: v})
	}
	return out, nil
}

func writeFile(path string, lines []line) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(enc)

	write := func(v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := bw.Write(b); err != nil {
			return err
		}
		return bw.WriteByte('\n')
	}
	if err := write(header{Version: fileVersion}); err != nil {
		return err
	}
	for _, l := range lines {
		if err := write(l); err != nil {
			return fmt.Errorf("write %s: %w", l.Name, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

// Load replaces the variables with the contents of path. A missing file
// loads nothing. Regions of an unregistered kind are held and saved back
// as they were. A region that no longer exists is skipped under DropStale;
// every other region failure surfaces as *regions.CorruptedError.
func (s *Store) Load(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.mu.Lock()
		s.vars = map[string]any{}
		s.held = map[string]regions.Record{}
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	vars := map[string]any{}
	held := map[string]regions.Record{}
	dropped := 0
	for n := 1; ; n++ {
		b, err := br.ReadBytes('\n')
		if len(b) == 0 && errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: %w", path, err)
		}
		if n == 1 {
			if err := checkHeader(b); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			continue
		}
		l, err := parseLine(b)
		if err != nil {
			return fmt.Errorf("%s line %d: %w", path, n, err)
		}
		if l.Region == nil {
			vars[l.Name] = l.Value
			continue
		}
		r, err := s.reg.Decode(*l.Region)
		switch {
		case errors.Is(err, regions.ErrUnknownKind):
			s.log.Printf("varstore: holding %s: no provider for %s", l.Name, l.Region.Type)
			held[l.Name] = *l.Region
			continue
		case err != nil && s.opts.DropStale && errors.Is(err, regions.ErrInvalidReference):
			s.log.Printf("varstore: dropping %s: %v", l.Name, err)
			dropped++
			continue
		case err != nil:
			return fmt.Errorf("%s line %d: variable %s: %w", path, n, l.Name, err)
		}
		vars[l.Name] = r
	}

	s.mu.Lock()
	s.vars = vars
	s.held = held
	s.mu.Unlock()
	s.log.Printf("varstore: loaded %d variables from %s (held=%d dropped=%d)", len(vars), path, len(held), dropped)
	return nil
}

func checkHeader(b []byte) error {
	var h header
	if err := json.Unmarshal(b, &h); err != nil {
		return fmt.Errorf("header: %w", err)
	}
	if h.Version != fileVersion {
		return fmt.Errorf("header: unsupported version %d", h.Version)
	}
	return nil
}

func parseLine(b []byte) (line, error) {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return line{}, err
	}
	if err := lineSchema.Validate(raw); err != nil {
		return line{}, err
	}
	var l line
	if err := json.Unmarshal(b, &l); err != nil {
		return line{}, err
	}
	return l, nil
}
