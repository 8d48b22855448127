package main

import (
	"fmt"

	"github.com/BjarniRunar/moggie/search"
	"github.com/BjarniRunar/moggie/storage/records"
)

// openEngine opens the record store at dir, wrapping any failure the way
// the teacher's downloader commands wrap theirs (fmt.Errorf("...: %w")).
func openEngine(dir string) (*search.Engine, error) {
	e, err := search.Open(records.Options{Dir: dir})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dir, err)
	}
	return e, nil
}
