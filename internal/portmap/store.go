package portmap

import (
	"encoding/csv"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/geofront/geofront-cli/internal/constants"
	"github.com/geofront/geofront-cli/pkg/configdir"
)

// Store stabilizes which local port represents a given remote across
// invocations. Entries are only ever added; the table has no eviction.
//
// The save step is a plain read-then-write without a lock file, so two
// concurrent invocations tunneling to the same remote can race on the
// table. Concurrent tunnels to different remotes are unaffected.
type Store struct {
	loadPaths []string
	savePath  string
	logger    zerolog.Logger
}

// NewStore creates a Store reading the given candidate files in order and
// persisting to savePath.
func NewStore(loadPaths []string, savePath string, logger zerolog.Logger) *Store {
	return &Store{loadPaths: loadPaths, savePath: savePath, logger: logger}
}

// NewDefaultStore resolves the mapping-table locations through the
// application's configuration search path.
func NewDefaultStore(logger zerolog.Logger) (*Store, error) {
	saveDir, err := configdir.SavePath(constants.ConfigResource)
	if err != nil {
		return nil, err
	}
	var loadPaths []string
	for _, dir := range configdir.LoadPaths(constants.ConfigResource) {
		loadPaths = append(loadPaths, filepath.Join(dir, constants.ProxyPortMapFilename))
	}
	savePath := filepath.Join(saveDir, constants.ProxyPortMapFilename)
	return NewStore(loadPaths, savePath, logger), nil
}

// Load merges every mapping file found on the search path. Entries from
// earlier paths win on duplicate keys.
func (s *Store) Load() (map[string]int, error) {
	data := make(map[string]int)
	for _, path := range s.loadPaths {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read port map %s: %w", path, err)
		}
		reader := csv.NewReader(f)
		// the table invites hand edits, so a stray field in one record
		// must not poison the rest of the file
		reader.FieldsPerRecord = -1
		records, err := reader.ReadAll()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("malformed port map %s: %w", path, err)
		}
		for _, record := range records {
			if len(record) != 2 {
				s.logger.Warn().Str("path", path).Strs("record", record).Msg("Skipping malformed port map record")
				continue
			}
			port, err := strconv.Atoi(record[1])
			if err != nil {
				s.logger.Warn().Str("path", path).Str("port", record[1]).Msg("Skipping non-numeric port map record")
				continue
			}
			if _, exists := data[record[0]]; !exists {
				data[record[0]] = port
			}
		}
	}
	return data, nil
}

// GetOrAllocate returns the stable local port for key, allocating and
// persisting a fresh ephemeral port on first use. The returned port is
// unbound again by the time this returns, so a later bind can still lose a
// race with another process; callers treat that as a recoverable bind
// failure rather than allocating a replacement.
func (s *Store) GetOrAllocate(key string) (int, error) {
	data, err := s.Load()
	if err != nil {
		return 0, err
	}
	if port, ok := data[key]; ok {
		return port, nil
	}

	port, err := unusedPort()
	if err != nil {
		return 0, err
	}
	data[key] = port
	if err := s.save(data); err != nil {
		return 0, err
	}
	s.logger.Info().Str("remote", key).Int("port", port).Str("path", s.savePath).
		Msg("Mapped new local port for remote")
	return port, nil
}

// unusedPort asks the OS for a currently free loopback TCP port.
func unusedPort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, fmt.Errorf("failed to allocate an ephemeral port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// save writes the whole table to the writable location, keys sorted for
// stable diffs.
func (s *Store) save(data map[string]int) error {
	f, err := os.Create(s.savePath)
	if err != nil {
		return fmt.Errorf("failed to write port map %s: %w", s.savePath, err)
	}
	defer f.Close()

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	w := csv.NewWriter(f)
	for _, key := range keys {
		if err := w.Write([]string{key, strconv.Itoa(data[key])}); err != nil {
			return fmt.Errorf("failed to write port map %s: %w", s.savePath, err)
		}
	}
	w.Flush()
	return w.Error()
}
