package entity

import "github.com/uptrace/bun"

// CounterOrderNumber names the sequence backing human-readable order numbers.
const CounterOrderNumber = "order_number"

// Counter is a named monotonic sequence row. Incremented under a row
// lock so concurrent order creation never hands out the same value.
type Counter struct {
	bun.BaseModel `bun:"table:counters"`

	Name  string `bun:"name,pk"`
	Value int64  `bun:"value"`
}
