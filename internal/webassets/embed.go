package webassets

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/keithlinneman/htmlsplice/internal/splice"
)

//go:embed blocks
var embedded embed.FS

// Block is a replacement fragment together with the markers that delimit
// the region it replaces.
type Block struct {
	Name        string
	Markers     splice.Markers
	Replacement string
}

const (
	// InsightsCardsStart opens the inlined team performance button that the
	// clean cards replace. The replacement does not carry it forward.
	InsightsCardsStart = "<!-- Team Performance Dashboard Button (inlined via server-side data URL) -->"
	// InsightsCardsEnd opens the sub-view that follows the cards and is kept.
	InsightsCardsEnd = "<!-- TEAM PERFORMANCE DASHBOARD SUB-VIEW -->"
)

// BlocksFS exposes the embedded replacement fragments.
func BlocksFS() fs.FS {
	sub, err := fs.Sub(embedded, "blocks")
	if err != nil {
		panic(fmt.Errorf("webassets: blocks subfs: %w", err))
	}
	return sub
}

// InsightsCards returns the four clean insights menu cards (team
// performance, offensive leaders, defensive wall, player analysis).
func InsightsCards() Block {
	data, err := fs.ReadFile(BlocksFS(), "insights-cards.html")
	if err != nil {
		panic(fmt.Errorf("webassets: insights-cards.html: %w", err))
	}
	return Block{
		Name: "insights-cards",
		Markers: splice.Markers{
			Start: InsightsCardsStart,
			End:   InsightsCardsEnd,
		},
		Replacement: string(data),
	}
}
