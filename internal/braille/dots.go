// Package braille drives a single-cell refreshable braille device over a
// byte stream.
package braille

import "unicode"

// Cell lists the raised dots (1-6) of one braille cell.
type Cell []byte

// bharati maps runes to Bharati braille cells. Digits reuse a-j.
var bharati = map[rune]Cell{
	'a': {1}, 'b': {1, 2}, 'c': {1, 4}, 'd': {1, 4, 5}, 'e': {1, 5},
	'f': {1, 2, 4}, 'g': {1, 2, 4, 5}, 'h': {1, 2, 5}, 'i': {2, 4}, 'j': {2, 4, 5},
	'k': {1, 3}, 'l': {1, 2, 3}, 'm': {1, 3, 4}, 'n': {1, 3, 4, 5}, 'o': {1, 3, 5},
	'p': {1, 2, 3, 4}, 'q': {1, 2, 3, 4, 5}, 'r': {1, 2, 3, 5}, 's': {2, 3, 4},
	't': {2, 3, 4, 5}, 'u': {1, 3, 6}, 'v': {1, 2, 3, 6}, 'w': {2, 4, 5, 6},
	'x': {1, 3, 4, 6}, 'y': {1, 3, 4, 5, 6}, 'z': {1, 3, 5, 6},

	'1': {1}, '2': {1, 2}, '3': {1, 4}, '4': {1, 4, 5}, '5': {1, 5},
	'6': {1, 2, 4}, '7': {1, 2, 4, 5}, '8': {1, 2, 5}, '9': {2, 4}, '0': {2, 4, 5},

	' ': {}, '.': {2, 5, 6}, ',': {2}, '?': {1, 4, 6}, '!': {2, 3, 5},

	'अ': {1}, 'आ': {1, 2}, 'इ': {1, 4}, 'ई': {1, 4, 5},
	'उ': {1, 5}, 'ऊ': {1, 2, 4}, 'ए': {1, 5, 6}, 'ऐ': {1, 2, 5, 6},
	'ओ': {2, 4, 6}, 'औ': {1, 2, 4, 5, 6},
	'क': {1, 3}, 'ख': {1, 3, 4}, 'ग': {1, 3, 4, 5}, 'घ': {1, 3, 5},
	'च': {2, 3, 4}, 'छ': {2, 3, 4, 5}, 'ज': {2, 3, 5}, 'झ': {2, 3, 5, 6},
	'ट': {1, 2, 3}, 'ठ': {1, 2, 3, 4}, 'ड': {1, 2, 4, 6}, 'ढ': {1, 2, 4, 5, 6},
	'त': {2, 3, 6}, 'थ': {2, 3, 4, 6}, 'द': {1, 2, 3, 5}, 'ध': {1, 2, 3, 5, 6},

	'ಅ': {1}, 'ಆ': {3, 4, 5}, 'ಇ': {2, 4}, 'ಈ': {3, 5},
	'ಉ': {1, 3, 6}, 'ಊ': {1, 2, 5, 6}, 'ಕ': {1, 3}, 'ಗ': {1, 2, 4, 5},
	'ತ': {2, 3, 4, 5}, 'ದ': {1, 4, 5}, 'ನ': {1, 4}, 'ಮ': {1, 3, 4},
}

// Dots returns the cell for r. Upper-case Latin letters share the lower-case
// cell. The second result is false for runes with no mapping.
func Dots(r rune) (Cell, bool) {
	c, ok := bharati[unicode.ToLower(r)]
	return c, ok
}

// Encode returns one cell per rune of text; unmapped runes yield an empty cell.
func Encode(text string) []Cell {
	var cells []Cell
	for _, r := range text {
		c, _ := Dots(r)
		cells = append(cells, c)
	}
	return cells
}

// Command frames a cell for the device: the dot count followed by the dots.
func (c Cell) Command() []byte {
	return append([]byte{byte(len(c))}, c...)
}
