// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// PACING
// =============================================================================

// Pacing controls typewriter timing.
type Pacing struct {
	// Base is the delay between characters.
	Base time.Duration
	// Jitter is the upper bound of the random delay added to Base.
	Jitter time.Duration
	// PunctuationFactor multiplies Base after . ! ? and ,
	PunctuationFactor int
	// Instant reveals everything in one step.
	Instant bool
	// Rand returns a value in [0, 1). Defaults to math/rand/v2.
	Rand func() float64
}

// DefaultPacing is 30ms per character with up to 20ms jitter.
func DefaultPacing() Pacing {
	return Pacing{
		Base:              30 * time.Millisecond,
		Jitter:            20 * time.Millisecond,
		PunctuationFactor: 3,
	}
}

// Delay returns the pause after revealing cluster.
func (p Pacing) Delay(cluster string) time.Duration {
	if p.Instant {
		return 0
	}
	if isPause(cluster) {
		factor := p.PunctuationFactor
		if factor < 1 {
			factor = 1
		}
		return p.Base * time.Duration(factor)
	}
	if p.Jitter <= 0 {
		return p.Base
	}
	rnd := p.Rand
	if rnd == nil {
		rnd = rand.Float64
	}
	return p.Base + time.Duration(rnd()*float64(p.Jitter))
}

func isPause(cluster string) bool {
	switch cluster {
	case ".", "!", "?", ",":
		return true
	}
	return false
}

// =============================================================================
// TYPEWRITER
// =============================================================================

// Typewriter reveals text one user-perceived character at a time.
// Each Typewriter animates exactly one message; it is not safe for
// concurrent use.
type Typewriter struct {
	clusters []string
	pos      int
	visible  strings.Builder
	pacing   Pacing
}

// NewTypewriter prepares text for reveal. Text is NFC-normalised so that
// combining sequences step as single characters.
func NewTypewriter(text string, pacing Pacing) *Typewriter {
	text = norm.NFC.String(text)
	var clusters []string
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		clusters = append(clusters, g.Str())
	}
	return &Typewriter{clusters: clusters, pacing: pacing}
}

// Next reveals the next character and returns the pause before the
// following one. ok is false when nothing was left to reveal.
func (t *Typewriter) Next() (delay time.Duration, ok bool) {
	if t.pos >= len(t.clusters) {
		return 0, false
	}
	if t.pacing.Instant {
		t.Finish()
		return 0, true
	}
	c := t.clusters[t.pos]
	t.visible.WriteString(c)
	t.pos++
	return t.pacing.Delay(c), true
}

// Finish reveals all remaining text.
func (t *Typewriter) Finish() {
	for ; t.pos < len(t.clusters); t.pos++ {
		t.visible.WriteString(t.clusters[t.pos])
	}
}

// Visible returns the text revealed so far.
func (t *Typewriter) Visible() string {
	return t.visible.String()
}

// Done reports whether every character is visible.
func (t *Typewriter) Done() bool {
	return t.pos >= len(t.clusters)
}

// Len returns the number of characters to reveal.
func (t *Typewriter) Len() int {
	return len(t.clusters)
}
