package session

import (
	"fmt"
	"strings"

	"github.com/chess-arena/client-go/internal/rules"
)

// FormatHistory renders confirmed moves with move-pair numbering, the way a
// score sheet reads: "1. e4 e5 2. Nf3 Nc6". A history starting with a black
// move opens with an ellipsis: "1... Nf6".
func FormatHistory(history []MoveRecord) string {
	if len(history) == 0 {
		return ""
	}
	var b strings.Builder
	pair := 1
	for i, rec := range history {
		if rec.Color == rules.White {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%d. %s", pair, rec.SAN)
		} else {
			if i == 0 {
				fmt.Fprintf(&b, "%d... %s", pair, rec.SAN)
			} else {
				fmt.Fprintf(&b, " %s", rec.SAN)
			}
			pair++
		}
	}
	return b.String()
}
