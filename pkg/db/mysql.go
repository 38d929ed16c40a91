package db

import (
	"net"

	driver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// MysqlDSN builds the DSN; parseTime and UTC are required by the models.
func MysqlDSN(cfg Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	port := cfg.Port
	if port == "" {
		port = "3306"
	}
	c := driver.NewConfig()
	c.User = cfg.Username
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, port)
	c.DBName = cfg.DBName
	c.ParseTime = true
	c.MultiStatements = true // golang-migrate runs whole files
	c.ClientFoundRows = true // conditional updates compare matched rows, not changed rows
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

func mysqlDialector(cfg Config) gorm.Dialector {
	return mysql.Open(MysqlDSN(cfg))
}
