package pipeline

import (
	"fmt"
	"strings"

	"github.com/sweeney/tickdemo/internal/rtos"
)

// Buffer aggregates producer tags by tick index. Each tick has one slot per
// producer, filled in arrival order. Buffer is owned by the consumer task
// and is not safe for concurrent use.
type Buffer struct {
	width int
	slots map[rtos.Tick][]int
	max   rtos.Tick
}

// NewBuffer creates a buffer with width slots per tick.
func NewBuffer(width int) *Buffer {
	return &Buffer{width: width, slots: make(map[rtos.Tick][]int)}
}

// Add stores msg's tag at the next free slot of its tick. It returns false
// when every slot of the tick is already taken.
func (b *Buffer) Add(msg TickMessage) bool {
	tags := b.slots[msg.TickIndex]
	if len(tags) >= b.width {
		return false
	}
	b.slots[msg.TickIndex] = append(tags, msg.Tag)
	if msg.TickIndex > b.max {
		b.max = msg.TickIndex
	}
	return true
}

// Tags returns the tags stored for tick in arrival order.
func (b *Buffer) Tags(tick rtos.Tick) []int {
	return append([]int(nil), b.slots[tick]...)
}

// Fill returns the number of tags stored for tick.
func (b *Buffer) Fill(tick rtos.Tick) int {
	return len(b.slots[tick])
}

// MaxObserved returns the highest tick index seen so far.
func (b *Buffer) MaxObserved() rtos.Tick {
	return b.max
}

// Rows formats ticks 1..MaxObserved, one row per tick, with empty slots
// left blank.
func (b *Buffer) Rows() []string {
	rows := make([]string, 0, b.max)
	for tick := rtos.Tick(1); tick <= b.max; tick++ {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%2d:", tick)
		tags := b.slots[tick]
		for i := 0; i < b.width; i++ {
			if i < len(tags) {
				fmt.Fprintf(&sb, " %d", tags[i])
			} else {
				sb.WriteString("  ")
			}
		}
		rows = append(rows, strings.TrimRight(sb.String(), " "))
	}
	return rows
}
