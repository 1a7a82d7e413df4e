package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"
)

func TestConnConfig_PinsUTCAndNamesSession(t *testing.T) {
	cfg, err := connConfig("postgres://sanctuary:pw@127.0.0.1:5432/sanctuary?sslmode=disable", "sanctuary-server")
	if err != nil {
		t.Fatalf("connConfig: %v", err)
	}
	if got := cfg.RuntimeParams["timezone"]; got != "UTC" {
		t.Fatalf("timezone = %q, want UTC", got)
	}
	if got := cfg.RuntimeParams["application_name"]; got != "sanctuary-server" {
		t.Fatalf("application_name = %q, want sanctuary-server", got)
	}
	if cfg.Database != "sanctuary" || cfg.Port != 5432 {
		t.Fatalf("database = %s port = %d", cfg.Database, cfg.Port)
	}
}

func TestConnConfig_KeepsApplicationNameFromURL(t *testing.T) {
	cfg, err := connConfig("postgres://u@localhost/db?application_name=migrator", "sanctuary-server")
	if err != nil {
		t.Fatalf("connConfig: %v", err)
	}
	if got := cfg.RuntimeParams["application_name"]; got != "migrator" {
		t.Fatalf("application_name = %q, want migrator", got)
	}
}

func TestConnConfig_RejectsBadURL(t *testing.T) {
	if _, err := connConfig("postgres://u@localhost:notaport/db", ""); err == nil {
		t.Fatal("connConfig succeeded for an invalid port")
	}
}

func TestApplyPool(t *testing.T) {
	db := sql.OpenDB(nopConnector{})
	defer db.Close()

	applyPool(db, PoolConfig{MaxOpenConns: 7, ConnMaxLifetime: time.Minute})
	if got := db.Stats().MaxOpenConnections; got != 7 {
		t.Fatalf("MaxOpenConnections = %d, want 7", got)
	}

	applyPool(db, PoolConfig{})
	if got := db.Stats().MaxOpenConnections; got != 7 {
		t.Fatalf("zero PoolConfig changed MaxOpenConnections to %d", got)
	}
}

func TestPingNilDB(t *testing.T) {
	if err := Ping(context.Background(), nil); !errors.Is(err, sql.ErrConnDone) {
		t.Fatalf("Ping(nil) = %v, want sql.ErrConnDone", err)
	}
}

type nopConnector struct{}

func (nopConnector) Connect(context.Context) (driver.Conn, error) {
	return nil, errors.New("no database in unit tests")
}

func (nopConnector) Driver() driver.Driver { return nopDriver{} }

type nopDriver struct{}

func (nopDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("no database in unit tests")
}
