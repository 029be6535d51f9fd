package tester

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jinkaiteo/edms/internal/model"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testPath = "../../.test/"
)

var (
	db *gorm.DB
)

// Setup recreates the shared test database. Call it from TestMain.
func Setup() {
	RemoveDBFile()

	_ = os.Setenv("ENV", "test")
	logrus.SetLevel(logrus.WarnLevel)

	err := os.MkdirAll(testPath+"/db", os.ModePerm)
	if err != nil {
		panic(err)
	}

	db, err = open(testPath + "db/edms.db")
	if err != nil {
		panic(err)
	}
}

func TestDB() *gorm.DB {
	return db
}

// FreshDB opens a migrated database private to t, so sweeps and listings only
// see the rows that test created.
func FreshDB(t testing.TB) *gorm.DB {
	t.Helper()

	fresh, err := open(filepath.Join(t.TempDir(), "edms.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := fresh.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return fresh
}

func open(path string) (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// one connection serializes transactions the way row locks do on postgres
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := model.Migrate(conn); err != nil {
		return nil, err
	}

	return conn, nil
}

func RemoveDBFile() {
	err := os.RemoveAll(testPath)
	if err != nil {
		panic(err)
	}
}

// Redis starts an in-memory redis server for t and returns a client bound to it.
func Redis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:     server.Addr(),
		Protocol: 2,
	})
	t.Cleanup(func() {
		_ = client.Close()
	})

	return client, server
}
