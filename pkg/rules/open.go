package rules

import "fmt"

const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// OpenPersister returns the Persister for driver backed by path.
func OpenPersister(driver, path string) (Persister, error) {
	switch driver {
	case "", DriverJSON:
		return NewJSONFile(path), nil
	case DriverSQLite:
		db, err := NewSQLiteDB(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
