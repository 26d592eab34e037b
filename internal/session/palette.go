package session

import "sync"

// palette is the fixed set of peer display colors. Colors are cosmetic only
// and wrap around once every entry has been handed out.
var palette = []string{
	"#e06c75", // red
	"#61afef", // blue
	"#98c379", // green
	"#e5c07b", // yellow
	"#c678dd", // purple
	"#56b6c2", // cyan
	"#d19a66", // orange
	"#abb2bf", // gray
}

// ColorWheel assigns palette colors round-robin by join order.
type ColorWheel struct {
	mu   sync.Mutex
	next int
}

// Next returns the next color in the palette.
func (w *ColorWheel) Next() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	color := palette[w.next%len(palette)]
	w.next++
	return color
}

// PaletteSize returns the number of distinct peer colors.
func PaletteSize() int {
	return len(palette)
}
