package feedsim

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Generator produces deterministic vendor objects for a channel. It is not safe for
// concurrent use.
type Generator struct {
	rng    *rand.Rand
	dupPct int
	seq    map[string]int64
	price  map[string]float64
	last   map[string][]byte
	dups   int
}

// NewGenerator creates a generator; dupPct percent of objects repeat the previous one
// for the same channel, sequence number included.
func NewGenerator(seed int64, dupPct int) *Generator {
	return &Generator{
		rng:    rand.New(rand.NewSource(seed)),
		dupPct: dupPct,
		seq:    make(map[string]int64),
		price:  make(map[string]float64),
		last:   make(map[string][]byte),
	}
}

// Duplicates returns how many repeated objects have been generated
func (g *Generator) Duplicates() int {
	return g.dups
}

// Next returns one JSON object for channel ("Q.AAPL", "T.MSFT", "A.SPY", "AM.SPY"),
// or nil for an unknown prefix.
func (g *Generator) Next(channel string, now time.Time) []byte {
	prefix, sym, ok := strings.Cut(channel, ".")
	if !ok {
		return nil
	}

	if prev := g.last[channel]; prev != nil && g.dupPct > 0 && g.rng.Intn(100) < g.dupPct {
		g.dups++
		return prev
	}

	g.seq[channel]++
	seq := g.seq[channel]
	px := g.walk(sym)
	ts := now.UnixMilli()

	var obj []byte
	switch prefix {
	case "Q":
		spread := 0.01 * float64(1+g.rng.Intn(5))
		obj = fmt.Appendf(nil,
			`{"ev":"Q","sym":%q,"bx":%d,"bp":%.2f,"bs":%d,"ax":%d,"ap":%.2f,"as":%d,"c":0,"t":%d,"z":3,"q":%d}`,
			sym, 1+g.rng.Intn(20), px, 1+g.rng.Intn(10), 1+g.rng.Intn(20), px+spread, 1+g.rng.Intn(10), ts, seq)
	case "T":
		obj = fmt.Appendf(nil,
			`{"ev":"T","sym":%q,"x":%d,"i":"%d","z":3,"p":%.2f,"s":%d,"c":[%d],"t":%d,"q":%d}`,
			sym, 1+g.rng.Intn(20), seq, px, 100*(1+g.rng.Intn(5)), 12*g.rng.Intn(2), ts, seq)
	case "A", "AM":
		window := time.Second
		if prefix == "AM" {
			window = time.Minute
		}
		end := now.Truncate(window)
		lo := px - 0.05*g.rng.Float64()
		hi := px + 0.05*g.rng.Float64()
		obj = fmt.Appendf(nil,
			`{"ev":%q,"sym":%q,"v":%d,"av":%d,"op":%.2f,"vw":%.4f,"o":%.2f,"c":%.2f,"h":%.2f,"l":%.2f,"a":%.4f,"z":%d,"s":%d,"e":%d}`,
			prefix, sym, 100*(1+g.rng.Intn(50)), 1000*seq, px, px, lo, px, hi, lo, px, 50+g.rng.Intn(100),
			end.Add(-window).UnixMilli(), end.UnixMilli())
	default:
		return nil
	}

	g.last[channel] = obj
	return obj
}

func (g *Generator) walk(sym string) float64 {
	px, ok := g.price[sym]
	if !ok {
		px = 50 + float64(g.rng.Intn(400))
	}
	px += (g.rng.Float64() - 0.5) * 0.2
	if px < 1 {
		px = 1
	}
	g.price[sym] = px
	return px
}
