package config

import (
	"net"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DSNValue returns the connection string for the configured SQL driver: an
// explicit dsn wins, otherwise one is assembled from the discrete fields.
func (c DatabaseRuntimeConfig) DSNValue() string {
	if v := strings.TrimSpace(c.DSN); v != "" {
		return v
	}
	if c.Driver == DriverPostgres {
		return c.postgresDSN()
	}
	return c.mysqlConfig().FormatDSN()
}

func (c DatabaseRuntimeConfig) mysqlConfig() *mysql.Config {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(orDefault(c.Host, defaultDBHost), strconv.Itoa(intOr(c.Port, defaultDBPort)))
	mc.User = orDefault(c.User, defaultDBUser)
	mc.Passwd = orDefault(c.Password, defaultDBPassword)
	mc.DBName = orDefault(c.Name, defaultDBName)
	mc.ParseTime = c.ParseTime

	mc.Loc = time.Local
	if loc, err := time.LoadLocation(orDefault(c.Loc, defaultDBLoc)); err == nil {
		mc.Loc = loc
	}

	mc.Params = map[string]string{"charset": orDefault(c.Charset, defaultDBCharset)}
	for key, value := range c.Params {
		k, v := strings.TrimSpace(key), strings.TrimSpace(value)
		if k != "" && v != "" {
			mc.Params[k] = v
		}
	}
	return mc
}

// postgresDSN builds a key=value DSN the pgx driver accepts.
func (c DatabaseRuntimeConfig) postgresDSN() string {
	parts := []string{
		"host=" + orDefault(c.Host, defaultDBHost),
		"port=" + strconv.Itoa(intOr(c.Port, defaultPGPort)),
		"user=" + c.User,
		"password=" + c.Password,
		"dbname=" + orDefault(c.Name, defaultDBName),
		"sslmode=" + orDefault(c.SSLMode, "disable"),
	}
	if c.Loc != "" && c.Loc != defaultDBLoc {
		parts = append(parts, "TimeZone="+c.Loc)
	}
	return strings.Join(parts, " ")
}

// URLValue returns the redis:// URL go-redis parses, preferring an explicit url.
func (c RedisRuntimeConfig) URLValue() string {
	if u := normalizeRedisRawURL(c.URL); u != "" {
		return u
	}

	u := &neturl.URL{
		Scheme: "redis",
		Host:   net.JoinHostPort(orDefault(c.Host, defaultRedisHost), strconv.Itoa(intOr(c.Port, defaultRedisPort))),
		Path:   "/" + strconv.Itoa(max(c.DB, 0)),
	}
	if c.TLS {
		u.Scheme = "rediss"
	}
	switch {
	case c.Username != "" && c.Password != "":
		u.User = neturl.UserPassword(c.Username, c.Password)
	case c.Username != "":
		u.User = neturl.User(c.Username)
	case c.Password != "":
		u.User = neturl.UserPassword("", c.Password)
	}

	query := neturl.Values{}
	for key, value := range c.Params {
		k, v := strings.TrimSpace(key), strings.TrimSpace(value)
		if k != "" && v != "" {
			query.Set(k, v)
		}
	}
	u.RawQuery = query.Encode()
	return u.String()
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func intOr(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
