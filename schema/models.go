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

package schema

import (
	"time"

	"github.com/tomoncle/todoprovider/database"
	"github.com/tomoncle/todoprovider/types"
	"github.com/uptrace/bun"
)

// TodoList groups items.
type TodoList struct {
	bun.BaseModel `bun:"table:todo_lists,alias:tl"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull,unique" json:"name"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// TodoItem belongs to a TodoList and is removed with it.
type TodoItem struct {
	bun.BaseModel `bun:"table:todo_items,alias:ti"`

	ID        int64         `bun:"id,pk,autoincrement" json:"id"`
	ListID    int64         `bun:"list_id,notnull" json:"list_id"`
	List      *TodoList     `bun:"rel:belongs-to,join:list_id=id,on_delete:CASCADE" json:"-"`
	Title     string        `bun:"title,notnull" json:"title"`
	Done      bool          `bun:"done,notnull,default:false" json:"done"`
	Position  int           `bun:"position,notnull,default:0" json:"position"`
	DueAt     bun.NullTime  `bun:"due_at" json:"due_at"`
	Metadata  types.JSONMap `bun:"metadata,type:text" json:"metadata,omitempty"`
	CreatedAt time.Time     `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time     `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

const (
	listPriority = 10
	itemPriority = 20
)

// Models holds the tables of the todo schema in creation order.
var Models = database.NewModelRegistry()

func init() {
	Models.Register(database.NewModelAdapter((*TodoList)(nil), listPriority))
	Models.Register(database.NewModelAdapter((*TodoItem)(nil), itemPriority))
}
