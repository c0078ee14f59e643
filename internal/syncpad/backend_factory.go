package syncpad

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildDatabaseFromDSN selects a Database implementation by DSN scheme.
// An empty DSN yields a nil Database, which the registry treats as
// "persistence disabled".
func BuildDatabaseFromDSN(dsn string) (Database, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	scheme := normalizeScheme(parsed.Scheme)
	if factory, ok := lookupDatabaseFactory(scheme); ok {
		return factory(dsn)
	}
	switch scheme {
	case "", "file":
		path, pathErr := dsnPath(parsed, dsn)
		if pathErr != nil {
			return nil, pathErr
		}
		return NewJSONFileDatabase(path)
	case "memory", "mem", "inmem":
		return NewInMemoryDatabase(), nil
	case "postgres", "postgresql":
		return NewPostgresDatabase(dsn)
	case "redis", "rediss":
		return NewRedisDatabase(dsn)
	case "mysql", "sqlite":
		return nil, fmt.Errorf("%w: database scheme %s", ErrNotImplemented, scheme)
	default:
		return nil, fmt.Errorf("unsupported database scheme: %s", scheme)
	}
}

func dsnPath(parsed *url.URL, dsn string) (string, error) {
	if parsed.Scheme == "" {
		return dsn, nil
	}
	path := parsed.Path
	if parsed.Host != "" {
		path = parsed.Host + path
	}
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: file DSN has no path: %s", ErrInvalidInput, dsn)
	}
	return path, nil
}
