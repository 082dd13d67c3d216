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
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/extra/bundebug"
)

// SlowQueryHook prints queries that took longer than SlowTime.
type SlowQueryHook struct {
	SlowTime time.Duration
	Writer   io.Writer
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if event.Err != nil || h.SlowTime <= 0 {
		return
	}
	duration := time.Since(event.StartTime)
	if duration <= h.SlowTime {
		return
	}
	w := h.Writer
	if w == nil {
		w = os.Stdout
	}
	_, _ = fmt.Fprintln(w,
		time.Now().Format("2006-01-02 15:04:05.000"),
		color.New(color.FgYellow, color.Bold).Sprintf("%15s", "[BUN_SLOW]"),
		fmt.Sprintf("%17s", duration.Round(time.Microsecond)),
		"  ", operationColor(event.Operation()).Sprint(event.Query),
	)
}

func operationColor(operation string) *color.Color {
	switch operation {
	case "SELECT":
		return color.New(color.BgGreen, color.FgHiWhite)
	case "INSERT":
		return color.New(color.BgBlue, color.FgHiWhite)
	case "UPDATE":
		return color.New(color.BgYellow, color.FgHiWhite)
	case "DELETE":
		return color.New(color.BgMagenta, color.FgHiWhite)
	default:
		return color.New(color.BgRed, color.FgHiWhite)
	}
}

// queryHooks builds the hooks enabled by cfg.
func queryHooks(cfg *ConnectionConfig, w io.Writer) []bun.QueryHook {
	if w == nil {
		w = os.Stdout
	}
	var hooks []bun.QueryHook
	if cfg.EnableQueryLog {
		hooks = append(hooks, bundebug.NewQueryHook(
			bundebug.WithVerbose(cfg.VerboseLog),
			bundebug.WithWriter(w),
		))
	}
	if cfg.SlowQueryTime > 0 {
		hooks = append(hooks, &SlowQueryHook{SlowTime: cfg.SlowQueryTime, Writer: w})
	}
	return hooks
}
