package warehouse

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
)

// Dialect captures the SQL differences between supported warehouses.
type Dialect struct {
	Name       string
	DriverName string
	// MaxParams is the bind parameter limit of one statement.
	MaxParams int

	placeholder func(n int) string
	quote       func(ident string) string
	types       map[columnKind]string
	createTable func(table, columns string) string
}

// Postgres covers PostgreSQL and Amazon Redshift through lib/pq.
var Postgres = Dialect{
	Name:        "postgres",
	DriverName:  "postgres",
	MaxParams:   65535,
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	quote:       func(ident string) string { return `"` + ident + `"` },
	types: map[columnKind]string{
		kindText:  "VARCHAR(%d)",
		kindBool:  "BOOLEAN",
		kindFloat: "DOUBLE PRECISION",
	},
	createTable: func(table, columns string) string {
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, columns)
	},
}

// SQLServer covers Microsoft SQL Server and Azure SQL through go-mssqldb.
var SQLServer = Dialect{
	Name:        "sqlserver",
	DriverName:  "sqlserver",
	MaxParams:   2099,
	placeholder: func(n int) string { return "@p" + strconv.Itoa(n) },
	quote:       func(ident string) string { return "[" + ident + "]" },
	types: map[columnKind]string{
		kindText:  "NVARCHAR(%d)",
		kindBool:  "BIT",
		kindFloat: "FLOAT",
	},
	createTable: func(table, columns string) string {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)", table, table, columns)
	},
}

// Placeholder returns the bind marker for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string { return d.placeholder(n) }

// Quote quotes an identifier that already matched identifierPattern.
func (d Dialect) Quote(ident string) string { return d.quote(ident) }

// jdbcParams are the query parameters lib/pq understands; JDBC-only options
// such as ssl=true are dropped from jdbc: URLs.
var jdbcParams = map[string]bool{
	"sslmode":          true,
	"sslrootcert":      true,
	"connect_timeout":  true,
	"application_name": true,
}

// Resolve picks the dialect from the URL scheme and returns a driver DSN with
// the configured credentials. jdbc:postgresql:// and jdbc:redshift:// URLs
// are accepted for compatibility with JDBC-style settings.
func Resolve(cfg Config) (Dialect, string, error) {
	raw := cfg.URL
	jdbc := strings.HasPrefix(raw, "jdbc:")
	raw = strings.TrimPrefix(raw, "jdbc:")

	u, err := url.Parse(raw)
	if err != nil {
		return Dialect{}, "", fmt.Errorf("parse warehouse URL: %w", err)
	}
	if u.Host == "" {
		return Dialect{}, "", fmt.Errorf("warehouse URL %q has no host", redactURL(cfg.URL))
	}

	var d Dialect
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql", "redshift":
		d = Postgres
		u.Scheme = "postgres"
		if jdbc {
			q := url.Values{}
			for k, v := range u.Query() {
				if jdbcParams[k] {
					q[k] = v
				}
			}
			u.RawQuery = q.Encode()
		}
	case "sqlserver":
		d = SQLServer
	default:
		return Dialect{}, "", fmt.Errorf("%w %q", errUnsupportedScheme, u.Scheme)
	}

	u.User = url.UserPassword(cfg.User, cfg.Password)
	return d, u.String(), nil
}

func redactURL(raw string) string {
	trimmed := strings.TrimPrefix(raw, "jdbc:")
	u, err := url.Parse(trimmed)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User(u.User.Username())
	if trimmed != raw {
		return "jdbc:" + u.String()
	}
	return u.String()
}
