package model

import "fmt"

// Options select the database files served by a model oracle.
type Options struct {
	Databases []string `mapstructure:"databases"`
}

// Open loads every database listed in opts.
func Open(opts Options) (*Oracle, error) {
	if len(opts.Databases) == 0 {
		return nil, fmt.Errorf("model oracle needs at least one database file")
	}
	dbs := make([]*Database, 0, len(opts.Databases))
	for _, path := range opts.Databases {
		db, err := LoadDatabase(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		dbs = append(dbs, db)
	}
	return New(dbs...), nil
}
