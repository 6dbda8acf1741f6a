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

package main

import (
	"strings"
)

// Action is a verb accepted on the command line.
type Action int

const (
	ActionGet Action = iota
	ActionSet
	ActionInsert
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionGet:
		return "get"
	case ActionSet:
		return "set"
	case ActionInsert:
		return "insert"
	case ActionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// ActionParseError reports a verb that is not one of get, set, insert or
// remove.
type ActionParseError struct {
	Action string
}

func (e *ActionParseError) Error() string {
	return "unable to parse argument action: " + e.Action
}

// ParseAction parses a verb case-insensitively.
func ParseAction(s string) (Action, error) {
	switch s = strings.ToLower(s); s {
	case "get":
		return ActionGet, nil
	case "set":
		return ActionSet, nil
	case "insert":
		return ActionInsert, nil
	case "remove":
		return ActionRemove, nil
	default:
		return 0, &ActionParseError{Action: s}
	}
}
