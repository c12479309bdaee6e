package docstore

import (
	"fmt"
	"os"
)

// OpenFromEnv selects a document store using environment variables.
// Defaults to the directory driver when unset.
//
//	BENCHBOOK_STORAGE_DRIVER: dir|memory|sqlite|postgres (default dir)
//	BENCHBOOK_DATA_DIR: root for the dir driver (default ./benchbook_data)
//	BENCHBOOK_SQLITE_PATH: path to sqlite file (default ./benchbook.db)
//	BENCHBOOK_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenFromEnv() (Store, error) {
	driver := os.Getenv("BENCHBOOK_STORAGE_DRIVER")
	if driver == "" {
		driver = string(DriverDir)
	}
	switch Driver(driver) {
	case DriverDir:
		return NewDir(os.Getenv("BENCHBOOK_DATA_DIR"))
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return NewSQLite(os.Getenv("BENCHBOOK_SQLITE_PATH"))
	case DriverPostgres:
		return NewPostgres(os.Getenv("BENCHBOOK_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
