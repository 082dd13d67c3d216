/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

type TransitionKind int

const (
	TransitionNoOp TransitionKind = iota
	TransitionCreate
	TransitionUpgrade
	TransitionDowngrade
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionCreate:
		return "create"
	case TransitionUpgrade:
		return "upgrade"
	case TransitionDowngrade:
		return "downgrade"
	default:
		return "noop"
	}
}

// Transition is the schema change decided once per open by comparing the
// stored version (From) with the requested one (To).
type Transition struct {
	Kind TransitionKind
	From int
	To   int
}

// PlanTransition decides the transition. A stored version of 0 means the file
// has never been initialized.
func PlanTransition(stored, requested int) Transition {
	t := Transition{From: stored, To: requested}
	switch {
	case stored == requested:
		t.Kind = TransitionNoOp
	case stored == 0:
		t.Kind = TransitionCreate
	case stored < requested:
		t.Kind = TransitionUpgrade
	default:
		t.Kind = TransitionDowngrade
	}
	return t
}

// Apply dispatches the transition to the matching hook.
func (t Transition) Apply(ctx context.Context, db bun.IDB, hooks SchemaHooks) error {
	var err error
	switch t.Kind {
	case TransitionNoOp:
		return nil
	case TransitionCreate:
		err = hooks.OnCreate(ctx, db, t.To)
	case TransitionUpgrade:
		err = hooks.OnUpgrade(ctx, db, t.From, t.To)
	case TransitionDowngrade:
		err = hooks.OnDowngrade(ctx, db, t.From, t.To)
	default:
		return fmt.Errorf("unknown schema transition %d", t.Kind)
	}
	if err != nil {
		return fmt.Errorf("%s %d -> %d: %w", t.Kind, t.From, t.To, err)
	}
	return nil
}

func (t Transition) String() string {
	return fmt.Sprintf("%s(%d->%d)", t.Kind, t.From, t.To)
}
