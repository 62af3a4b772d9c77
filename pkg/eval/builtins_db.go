package eval

import (
	"poly/pkg/sovereignty"
)

// Database built-ins work on handles from the store registry. Values are
// stored as JSON so any script value round-trips.

func init() {
	register("db_open", func(in *Interpreter, args ...Object) Object {
		path, ok := stringArg(args, 0)
		if !ok {
			return newError("db_open() requires a path")
		}
		if err := in.check(sovereignty.Simple(sovereignty.Database)); err != nil {
			return err
		}
		id, err := in.db.Open(in.resolvePath(path))
		if err != nil {
			return newError("Database error: %s", err)
		}
		return NewString(id)
	}, "path")
	register("db_get", func(in *Interpreter, args ...Object) Object {
		id, key, errObj := in.dbArgs("db_get", args)
		if errObj != nil {
			return errObj
		}
		data, found, err := in.db.Get(id, key)
		if err != nil {
			return newError("Database error: %s", err)
		}
		if !found {
			if def, ok := arg(args, 2); ok {
				return def
			}
			return NULL
		}
		val, err := FromJSON(data)
		if err != nil {
			return NewString(string(data))
		}
		return val
	}, "db", "key", "default")
	register("db_put", func(in *Interpreter, args ...Object) Object {
		id, key, errObj := in.dbArgs("db_put", args)
		if errObj != nil {
			return errObj
		}
		var val Object = NULL
		if len(args) > 2 {
			val = args[2]
		}
		data, err := ToJSON(val)
		if err != nil {
			return newError("JSON stringify error: %s", err)
		}
		if err := in.db.Put(id, key, data); err != nil {
			return newError("Database error: %s", err)
		}
		return TRUE
	}, "db", "key", "value")
	register("db_delete", func(in *Interpreter, args ...Object) Object {
		id, key, errObj := in.dbArgs("db_delete", args)
		if errObj != nil {
			return errObj
		}
		existed, err := in.db.Delete(id, key)
		if err != nil {
			return newError("Database error: %s", err)
		}
		return nativeBoolToBooleanObject(existed)
	}, "db", "key")
	register("db_keys", func(in *Interpreter, args ...Object) Object {
		id, ok := stringArg(args, 0)
		if !ok {
			return newError("db_keys() requires a database handle")
		}
		if err := in.check(sovereignty.Simple(sovereignty.Database)); err != nil {
			return err
		}
		prefix, _ := stringArg(args, 1)
		keys, err := in.db.Keys(id, prefix)
		if err != nil {
			return newError("Database error: %s", err)
		}
		return stringList(keys...)
	}, "db", "prefix")
	register("db_close", func(in *Interpreter, args ...Object) Object {
		id, ok := stringArg(args, 0)
		if !ok {
			return newError("db_close() requires a database handle")
		}
		return nativeBoolToBooleanObject(in.db.Close(id))
	}, "db")
}

func (in *Interpreter) dbArgs(name string, args []Object) (string, string, *ErrorObj) {
	id, ok1 := stringArg(args, 0)
	key, ok2 := stringArg(args, 1)
	if !ok1 || !ok2 {
		return "", "", newError("%s() requires a database handle and a key", name)
	}
	if err := in.check(sovereignty.Simple(sovereignty.Database)); err != nil {
		return "", "", err
	}
	return id, key, nil
}
