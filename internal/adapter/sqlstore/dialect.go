package sqlstore

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Supported database/sql driver names.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DetectDriver guesses the driver from a DSN.
func DetectDriver(dsn string) (string, bool) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", false
	}
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DriverPostgres, true
	case strings.HasPrefix(lower, "mysql://"):
		return DriverMySQL, true
	case strings.HasPrefix(lower, "file:"), lower == ":memory:", strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".db"):
		return DriverSQLite, true
	case strings.Contains(lower, "@tcp("), strings.Contains(lower, "@unix("):
		return DriverMySQL, true
	}
	return "", false
}

// NormalizeDriver maps aliases to a registered driver name.
func NormalizeDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "mysql", "mariadb":
		return DriverMySQL, nil
	case "postgres", "postgresql", "pg":
		return DriverPostgres, nil
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// NormalizeDSN converts a mysql:// URL into the go-sql-driver DSN format.
// Other DSNs are returned unchanged.
func NormalizeDSN(driver, dsn string) (string, error) {
	if driver != DriverMySQL || !strings.HasPrefix(strings.ToLower(dsn), "mysql://") {
		return dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql url: %w", err)
	}

	// ParseDSN sorts driver options (parseTime, loc, ...) from session
	// variables, so only the path and query go through it.
	tail := "/" + strings.TrimPrefix(u.Path, "/")
	if u.RawQuery != "" {
		tail += "?" + u.RawQuery
	}
	cfg, err := mysql.ParseDSN(tail)
	if err != nil {
		return "", fmt.Errorf("invalid mysql url: %w", err)
	}
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	return cfg.FormatDSN(), nil
}

func validIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// placeholder returns the n-th (1-based) bind parameter for driver.
func placeholder(driver string, n int) string {
	if driver == DriverPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}
