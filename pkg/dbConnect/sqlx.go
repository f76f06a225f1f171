package dbconnect

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/newrelic/go-agent/v3/integrations/nrpq"

	"github.com/jecitDev/jec-go-jsonfield/pkg/dialect"
)

// DefaultDriver is the New Relic instrumented lib/pq driver.
const DefaultDriver = "nrpostgres"

// Config is the database section of the column config file.
type Config struct {
	Driver     string `yaml:"driver" validate:"omitempty,sqldriver"`
	DSN        string `yaml:"dsn"`
	Host       string `yaml:"host" validate:"required_without=DSN"`
	Port       string `yaml:"port" validate:"required_without=DSN"`
	Dbuser     string `yaml:"user"`
	Dbpassword string `yaml:"password"`
	Dbname     string `yaml:"dbname" validate:"required_without=DSN"`
	Sslmode    string `yaml:"sslmode"`
}

// DriverName returns the configured driver or DefaultDriver.
func (c Config) DriverName() string {
	if c.Driver == "" {
		return DefaultDriver
	}
	return c.Driver
}

// DataSource returns DSN when set, otherwise a lib/pq keyword string.
func (c Config) DataSource() string {
	if c.DSN != "" {
		return c.DSN
	}
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host,
		c.Port,
		c.Dbuser,
		c.Dbpassword,
		c.Dbname,
		sslmode,
	)
}

// ConnectSqlx opens and pings the database and resolves its dialect from
// the driver name.
func ConnectSqlx(dbConfig Config) (db *sqlx.DB, d dialect.Dialect, err error) {
	driverName := dbConfig.DriverName()
	d, err = dialect.ForDriver(driverName)
	if err != nil {
		return nil, nil, err
	}

	db, err = sqlx.Connect(driverName, dbConfig.DataSource())
	if err != nil {
		return nil, nil, fmt.Errorf("connect %s: %w", driverName, err)
	}
	return db, d, nil
}
