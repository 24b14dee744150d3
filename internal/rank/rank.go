// Package rank scores and orders provider candidates against a reference
// candidate synthesized from the other providers' top picks.
package rank

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"songdl/internal/core"
	"songdl/pkg/fuzzy"
)

var (
	officialRegex = regexp.MustCompile(`(?i)\b[ou]ffi[cz]i[ae]le?\b|_off\b|\btopic\b|\blyrics?\b|\bparoles?\b`)
	audioRegex    = regexp.MustCompile(`(?i)\baudio\b`)
	// Markers of undesired variants: looped hour-long uploads, compilations,
	// altered recordings and date-stamped bootlegs.
	discardRegex = regexp.MustCompile(`(?i)\d+ ?h(?:our)?s?\b|\b8d audio\b|\bspee?d ?up\b|\baco?usti|\bbest of\b|\bcomplete\b|\bnon.?stop\b|\bpiano\b|\blive\b|\bdire[ct]ta?\b|\bremix|\bversion|\brecord|\d+[./-]\d+[./-]\d+`)
)

type Engine struct {
	weights core.RankWeights
	logger  *zap.Logger
}

func New(weights core.RankWeights, logger *zap.Logger) *Engine {
	return &Engine{weights: weights, logger: logger}
}

// breakdown keeps the per-signal scores of one candidate for debugging.
type breakdown struct {
	Artist     float64
	Name       float64
	Official   float64
	Copyright  float64
	Time       float64
	Popularity float64
	Discard    float64
}

type scored struct {
	candidate core.Candidate
	score     float64
	parts     breakdown
}

// Order ranks a provider's candidates against the merged reference built
// from the other providers' top picks and returns the surviving candidates
// best match first. The input slice is never mutated; ties keep their
// original relative order.
func (e *Engine) Order(provider string, references []core.Candidate, candidates []core.Candidate) []core.Candidate {
	if len(candidates) == 0 {
		return nil
	}

	reference := core.Merge(references)
	refTitle := fuzzy.NormalizeTitle(reference.Title)
	refWords := fuzzy.Words(refTitle)

	refArtists := make([]string, 0, len(reference.Artists))
	for _, a := range reference.Artists {
		refArtists = append(refArtists, fuzzy.NormalizeSentence(a))
	}

	ranked := make([]scored, 0, len(candidates))
	for _, candidate := range candidates {
		s, keep := e.scoreSafely(reference, refTitle, refWords, refArtists, candidate)
		if keep {
			ranked = append(ranked, s)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if ce := e.logger.Check(zap.DebugLevel, "sorted results"); ce != nil {
		lines := make([]string, 0, len(ranked))
		for _, s := range ranked {
			lines = append(lines, fmt.Sprintf("%v %+v: %v", s.score, s.parts, s.candidate))
		}
		ce.Write(zap.String("provider", provider), zap.String("results", strings.Join(lines, "\n")))
	}

	out := make([]core.Candidate, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.candidate)
	}
	return out
}

// scoreSafely shields the ranking of the remaining list from a candidate
// with a pathological shape: instead of aborting the call, the candidate is
// kept and sinks to the bottom of the order.
func (e *Engine) scoreSafely(reference core.Candidate, refTitle string, refWords, refArtists []string, candidate core.Candidate) (s scored, keep bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("scoring failed, ranking candidate last",
				zap.String("candidate", candidate.Title), zap.Any("panic", r))
			s = scored{candidate: candidate, score: math.Inf(-1)}
			keep = true
		}
	}()
	return e.score(reference, refTitle, refWords, refArtists, candidate)
}

func (e *Engine) score(reference core.Candidate, refTitle string, refWords, refArtists []string, candidate core.Candidate) (scored, bool) {
	w := e.weights

	title := fuzzy.NormalizeTitle(candidate.Title)
	artistText := fuzzy.NormalizeSentence(strings.Join(candidate.Artists, " "))

	// Hard filter: no shared title word means a different song entirely.
	// Nothing matches an empty reference title, so when every metadata
	// provider came up empty no candidate survives.
	if !fuzzy.CommonWord(refWords, fuzzy.Words(title)) {
		return scored{}, false
	}

	var parts breakdown

	// Hard filter: at least one reference artist must align with the
	// candidate's artist text.
	if len(refArtists) == 0 {
		parts.Artist = 100
	} else {
		hits := 0
		for _, ref := range refArtists {
			if fuzzy.PartialRatio(ref, artistText, w.ArtistFloor) > 0 {
				hits++
			}
		}
		if hits == 0 {
			return scored{}, false
		}
		parts.Artist = float64(hits) / float64(len(refArtists)) * 100
	}

	parts.Name = fuzzy.Ratio(
		strings.ToLower(fuzzy.Transliterate(refTitle)),
		strings.ToLower(fuzzy.Transliterate(title)),
		w.NameFloor,
	) * 100

	parts.Official = officialSignal(title, artistText, candidate.Extras)

	if reference.Copyright == "" {
		parts.Copyright = 100
	} else {
		parts.Copyright = 80
		if strings.Contains(artistText, fuzzy.NormalizeSentence(reference.Copyright)) {
			parts.Copyright += 20
		}
	}

	parts.Time = timeSignal(reference.Duration, candidate.Duration, w.GraceSeconds)
	parts.Popularity = popularitySignal(candidate.Extras)
	parts.Discard = float64(len(discardRegex.FindAllString(title+" "+artistText, -1))) * -100

	score := (w.Artist*parts.Artist +
		w.Name*parts.Name +
		w.Official*parts.Official +
		w.Copyright*parts.Copyright +
		w.Time*parts.Time +
		w.Popularity*parts.Popularity +
		w.Discard*parts.Discard) / w.Divisor

	// rounded for debugging
	score = math.Round(score*1000) / 1000

	return scored{candidate: candidate, score: score, parts: parts}, true
}

// officialSignal stacks up to 200: a marker pattern (or, failing that, a
// verified-artist badge) is worth 100, and the bare word "audio" in the
// title adds another 100 once any official signal is present.
func officialSignal(title, artistText string, extras core.Extras) float64 {
	signal := 0.0
	if officialRegex.MatchString(title + " " + artistText) {
		signal += 100
	} else if v, ok := extras.(core.VideoExtras); ok && v.Verified {
		signal += 100
	}
	if signal > 0 && audioRegex.MatchString(title) {
		signal += 100
	}
	return signal
}

// timeSignal tolerates grace seconds of drift, then applies a quadratic
// penalty scaled by the reference duration.
func timeSignal(refDuration, duration, grace float64) float64 {
	if refDuration <= 0 {
		return 100
	}
	delta := math.Max(math.Abs(duration-refDuration)-grace, 0)
	return math.Max(100-delta*delta/refDuration*100, 0)
}

// popularitySignal is a weak tiebreaker from view counts; sources without
// one sit at the neutral midpoint.
func popularitySignal(extras core.Extras) float64 {
	v, ok := extras.(core.VideoExtras)
	if !ok || v.Views <= 0 {
		return 50
	}
	return math.Min(math.Log10(float64(v.Views))/10*100, 100)
}
