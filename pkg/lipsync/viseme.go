package lipsync

// Viseme is a mouth shape from the Oculus 15-viseme set used by most avatar
// rigs (morph targets "viseme_sil", "viseme_PP", ...).
type Viseme int

const (
	Sil Viseme = iota
	PP
	FF
	TH
	DD
	KK
	CH
	SS
	NN
	RR
	AA
	E
	I
	O
	U

	numVisemes
)

var visemeNames = [numVisemes]string{
	"sil", "PP", "FF", "TH", "DD", "kk", "CH", "SS", "nn", "RR", "aa", "E", "I", "O", "U",
}

// String returns the rig name of the viseme ("aa", "kk", ...).
func (v Viseme) String() string {
	if v < 0 || v >= numVisemes {
		return "unknown"
	}
	return visemeNames[v]
}

// Morph returns the morph target name, e.g. "viseme_aa".
func (v Viseme) Morph() string {
	return "viseme_" + v.String()
}

// Visemes returns every viseme in rig order.
func Visemes() []Viseme {
	out := make([]Viseme, numVisemes)
	for i := range out {
		out[i] = Viseme(i)
	}
	return out
}

// Band edges in Hz for the spectral profile.
var bandEdges = [...]float64{80, 300, 800, 1500, 2500, 4000, 8000}

const numBands = len(bandEdges) - 1

// templates are rough relative band energies for each voiced viseme. Bilabials
// and back vowels sit low, open vowels peak around F1, front vowels add an F2
// bump, sibilants live above 4 kHz.
var templates = map[Viseme][numBands]float64{
	PP: {0.45, 0.30, 0.15, 0.05, 0.03, 0.02},
	FF: {0.10, 0.10, 0.15, 0.20, 0.25, 0.20},
	TH: {0.10, 0.15, 0.15, 0.20, 0.20, 0.20},
	DD: {0.20, 0.25, 0.20, 0.15, 0.12, 0.08},
	KK: {0.15, 0.30, 0.25, 0.15, 0.10, 0.05},
	CH: {0.05, 0.08, 0.12, 0.25, 0.30, 0.20},
	SS: {0.02, 0.03, 0.05, 0.15, 0.30, 0.45},
	NN: {0.40, 0.30, 0.15, 0.08, 0.05, 0.02},
	RR: {0.25, 0.35, 0.25, 0.10, 0.03, 0.02},
	AA: {0.10, 0.30, 0.40, 0.12, 0.05, 0.03},
	E:  {0.15, 0.30, 0.15, 0.28, 0.08, 0.04},
	I:  {0.25, 0.25, 0.05, 0.30, 0.10, 0.05},
	O:  {0.20, 0.50, 0.18, 0.07, 0.03, 0.02},
	U:  {0.45, 0.35, 0.10, 0.05, 0.03, 0.02},
}

// closest returns the voiced viseme whose template is nearest to profile.
func closest(profile [numBands]float64) Viseme {
	best, bestDist := Sil, 0.0
	for v := PP; v < numVisemes; v++ {
		tpl := templates[v]
		var d float64
		for b := range tpl {
			diff := profile[b] - tpl[b]
			d += diff * diff
		}
		if best == Sil || d < bestDist {
			best, bestDist = v, d
		}
	}
	return best
}
