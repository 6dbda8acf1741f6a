// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command chainkv reads and writes a single pair of a key-value database.
//
//	chainkv [-db path] [-hash sdbm|xxhash] get <key>
//	chainkv [-db path] [-hash sdbm|xxhash] insert <key> <value>
//	chainkv [-db path] [-hash sdbm|xxhash] remove <key>
//
// set is accepted as a synonym of insert. Keys are unsigned 64-bit integers.
// Without -db (or $CHAINKV_DB) the database lives only for the duration of
// the command.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/eliasfl/chainmap"
	"github.com/eliasfl/chainmap/kvstore"
)

var (
	dbPath   = flag.String("db", os.Getenv("CHAINKV_DB"), "path of the JSON database file (default $CHAINKV_DB, empty for memory only)")
	hashName = flag.String("hash", "sdbm", "key digest function: sdbm or xxhash")
)

// usageError is an error in the command-line arguments.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("chainkv: ")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: chainkv [flags] get|set|insert|remove <key> [value]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(os.Stdout, *dbPath, *hashName, flag.Args()); err != nil {
		var uerr usageError
		if errors.As(err, &uerr) {
			fmt.Fprintf(os.Stderr, "chainkv: %v\n", err)
			flag.Usage()
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func run(w io.Writer, path, hashName string, args []string) error {
	if len(args) < 2 {
		return usagef("need an action and a key")
	}
	action, err := ParseAction(args[0])
	if err != nil {
		return usageError{err}
	}
	key, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return usagef("invalid key %q: %v", args[1], err)
	}

	want := 2
	if action == ActionSet || action == ActionInsert {
		want = 3
	}
	if len(args) != want {
		return usagef("%s takes %d arguments, got %d", action, want-1, len(args)-1)
	}

	var opts []kvstore.Option
	switch hashName {
	case "sdbm":
	case "xxhash":
		opts = append(opts, kvstore.WithHash(chainmap.XXHashUint64[uint64]))
	default:
		return usagef("unknown hash %q", hashName)
	}

	db, err := kvstore.Open(path, opts...)
	if err != nil {
		return err
	}

	var value string
	var ok bool
	switch action {
	case ActionGet:
		value, ok = db.Get(key)
	case ActionSet, ActionInsert:
		value, ok, err = db.Insert(key, args[2])
	case ActionRemove:
		value, ok, err = db.Remove(key)
	}
	if cerr := db.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if ok {
		fmt.Fprintf(w, "Some(%q)\n", value)
	} else {
		fmt.Fprintln(w, "None")
	}
	return nil
}
