// Package text parses free-form song queries into structured form.
package text

import (
	"regexp"
	"strings"

	"songdl/internal/core"

	"golang.org/x/text/unicode/norm"
)

const artistSeparator = "--"

var (
	marketRegex = regexp.MustCompile(`\bmarket:([\w-]+)`)
	spaceRegex  = regexp.MustCompile(`\s+`)
)

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ParseQuery turns a raw user query into a core.Query. The expected shape is
// "title -- artist", optionally prefixed or suffixed with a "market:XX" hint.
// The artist part is optional.
func (p *Parser) ParseQuery(text string) core.Query {
	text = p.normalizeText(text)

	var market string
	text = marketRegex.ReplaceAllStringFunc(text, func(m string) string {
		market = strings.ToUpper(marketRegex.FindStringSubmatch(m)[1])
		return ""
	})
	text = strings.TrimSpace(text)

	query := core.Query{Market: market}

	song, artist, found := strings.Cut(text, artistSeparator)
	query.Song = strings.TrimSpace(song)
	if found {
		query.Artist = strings.TrimSpace(artist)
	}

	return query
}

func (p *Parser) normalizeText(text string) string {
	text = strings.TrimSpace(text)
	text = norm.NFC.String(text)
	text = spaceRegex.ReplaceAllString(text, " ")
	return text
}
