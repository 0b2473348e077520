package warehouse

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// TableName is the append-only target table inside the configured schema.
const TableName = "coronal_mass_ejection"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config is the warehouse connection. All four fields are required.
type Config struct {
	URL      string
	Schema   string
	User     string
	Password string
}

// Validate reports every missing setting at once, then checks that the schema
// is a plain identifier and the URL names a supported dialect.
func (c Config) Validate() error {
	var missing []string
	if c.URL == "" {
		missing = append(missing, "url")
	}
	if c.Schema == "" {
		missing = append(missing, "schema")
	}
	if c.User == "" {
		missing = append(missing, "user")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("warehouse config: missing %s", strings.Join(missing, ", "))
	}

	if !identifierPattern.MatchString(c.Schema) {
		return fmt.Errorf("warehouse config: schema %q is not a plain identifier", c.Schema)
	}
	if _, _, err := Resolve(c); err != nil {
		return fmt.Errorf("warehouse config: %w", err)
	}
	return nil
}

// Table returns the unquoted schema-qualified target table.
func (c Config) Table() string {
	return c.Schema + "." + TableName
}

// String omits the password so the config can be logged.
func (c Config) String() string {
	return fmt.Sprintf("warehouse{url=%s table=%s user=%s}", redactURL(c.URL), c.Table(), c.User)
}

var errUnsupportedScheme = errors.New("unsupported warehouse URL scheme")
