package info

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/gorm"
)

// ProbeFunc is executed to determine the outcome of liveness or readiness
// probes. Returning a non-nil error marks the probe as failed.
type ProbeFunc func(ctx context.Context) error

// Probe is a named check. The name is reported to clients when the check
// fails, so it should identify the dependency without exposing its address.
type Probe struct {
	Name  string
	Check ProbeFunc
}

func (p Probe) label(idx int) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("probe %d", idx+1)
}

// DBPinger captures the subset of *sql.DB used for readiness checks.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// MongoPinger captures the subset of the MongoDB client used for readiness checks.
type MongoPinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// RedisPinger captures the subset of a go-redis client used for readiness checks.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// NewPingProbe wraps fn so failures name the dependency.
func NewPingProbe(name string, fn func(ctx context.Context) error) Probe {
	return Probe{Name: name, Check: func(ctx context.Context) error {
		if fn == nil {
			return nilComponentError(name, "ping function")
		}
		if err := fn(ctx); err != nil {
			return fmt.Errorf("%s probe failed: %w", name, err)
		}
		return nil
	}}
}

// NewDBPingProbe pings a database/sql pool such as PostgreSQL.
func NewDBPingProbe(name string, db DBPinger) Probe {
	if db == nil {
		return NewPingProbe(name, nil)
	}
	return NewPingProbe(name, db.PingContext)
}

// NewGormPingProbe pings the connection pool underneath a gorm handle.
func NewGormPingProbe(name string, db *gorm.DB) Probe {
	return Probe{Name: name, Check: func(ctx context.Context) error {
		if db == nil {
			return nilComponentError(name, "gorm handle")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("%s probe failed: %w", name, err)
		}
		return NewDBPingProbe(name, sqlDB).Check(ctx)
	}}
}

// NewMongoPingProbe pings MongoDB. A nil readPref means readpref.Primary.
func NewMongoPingProbe(client MongoPinger, readPref *readpref.ReadPref) Probe {
	return Probe{Name: "mongo", Check: func(ctx context.Context) error {
		if client == nil {
			return nilComponentError("mongo", "client")
		}
		rp := readPref
		if rp == nil {
			rp = readpref.Primary()
		}
		if err := client.Ping(ctx, rp); err != nil {
			return fmt.Errorf("mongo probe failed: %w", err)
		}
		return nil
	}}
}

// NewRedisPingProbe sends PING to Redis.
func NewRedisPingProbe(client RedisPinger) Probe {
	return Probe{Name: "redis", Check: func(ctx context.Context) error {
		if client == nil {
			return nilComponentError("redis", "client")
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis probe failed: %w", err)
		}
		return nil
	}}
}

func nilComponentError(name, component string) error {
	return fmt.Errorf("%s probe: %s is nil", name, component)
}
