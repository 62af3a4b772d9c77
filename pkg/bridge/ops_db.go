package bridge

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"poly/pkg/sovereignty"
)

func dbError(err error) error {
	return fmt.Errorf("Database error: %w", err)
}

// Values cross the bridge as JSON and are stored as the JSON text they
// arrived as, so scripts and pages read back the same shape.
func registerDBOps() {
	db := needs(sovereignty.Database)

	register("db_open", db, func(s *Server, _ context.Context, a Args) (any, error) {
		path, err := a.Require("path", 0)
		if err != nil {
			return nil, err
		}
		id, err := s.db.Open(s.path(path))
		if err != nil {
			return nil, dbError(err)
		}
		return id, nil
	})

	register("db_get", db, func(s *Server, _ context.Context, a Args) (any, error) {
		data, found, err := s.db.Get(a.String("id", 0, ""), a.String("key", 1, ""))
		if err != nil {
			return nil, dbError(err)
		}
		if !found {
			if def := a.Raw("default", 2); def != nil {
				return json.RawMessage(def), nil
			}
			return nil, nil
		}
		if !gjson.ValidBytes(data) {
			return string(data), nil
		}
		return json.RawMessage(data), nil
	})

	register("db_put", db, func(s *Server, _ context.Context, a Args) (any, error) {
		value := a.Raw("value", 2)
		if value == nil {
			value = []byte("null")
		}
		if err := s.db.Put(a.String("id", 0, ""), a.String("key", 1, ""), value); err != nil {
			return nil, dbError(err)
		}
		return true, nil
	})

	register("db_delete", db, func(s *Server, _ context.Context, a Args) (any, error) {
		existed, err := s.db.Delete(a.String("id", 0, ""), a.String("key", 1, ""))
		if err != nil {
			return nil, dbError(err)
		}
		return existed, nil
	})

	register("db_keys", db, func(s *Server, _ context.Context, a Args) (any, error) {
		keys, err := s.db.Keys(a.String("id", 0, ""), a.String("prefix", 1, ""))
		if err != nil {
			return nil, dbError(err)
		}
		if keys == nil {
			keys = []string{}
		}
		return keys, nil
	})

	register("db_close", db, func(s *Server, _ context.Context, a Args) (any, error) {
		return s.db.Close(a.String("id", 0, "")), nil
	})
}
