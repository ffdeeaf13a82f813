package datastore

import (
	"net"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/tphakala/invsync/internal/errors"
)

const defaultMySQLPort = "3306"

// BuildMySQLDSN renders a go-sql-driver DSN from cfg. An explicit cfg.DSN is
// validated and returned with parseTime forced on.
func BuildMySQLDSN(cfg *MySQLConfig) (string, error) {
	if cfg.DSN != "" {
		parsed, err := gomysql.ParseDSN(cfg.DSN)
		if err != nil {
			return "", errors.New(err).
				Component("datastore").
				Category(errors.CategoryConfiguration).
				Context("operation", "parse_mysql_dsn").
				Build()
		}
		parsed.ParseTime = true
		return parsed.FormatDSN(), nil
	}

	if cfg.Host == "" || cfg.Database == "" {
		return "", errors.ValidationError("mysql host and database are required")
	}
	port := cfg.Port
	if port == "" {
		port = defaultMySQLPort
	}

	mc := gomysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Loc = time.Local
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN(), nil
}

// SanitizeDSN returns dsn with the password masked, for logs and errors.
func SanitizeDSN(dsn string) string {
	parsed, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return "[unparseable dsn]"
	}
	if parsed.Passwd != "" {
		parsed.Passwd = "****"
	}
	return parsed.FormatDSN()
}

// Location returns addr/dbname for display.
func Location(dsn string) string {
	parsed, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return ""
	}
	return parsed.Addr + "/" + parsed.DBName
}
