package domain

import "slices"

// Labels produced by the classifier besides named spots.
const (
	SpotUnclassified = "No Clasificado"
	SpotBigWaves     = "Olas Grandes - Mirar Costa Sur"
)

// Named spots.
const (
	SpotBarcarola      = "Barcarola"
	SpotBastian        = "Bastián"
	SpotPuntaMujeres   = "Punta Mujeres"
	SpotTiburonEspino  = "Tiburón-Espino"
	SpotPosibleTiburon = "Posible Tiburón"
	SpotPapagayo       = "Papagayo - Montaña Amarilla"
	SpotBajoElRisco    = "Bajo el Risco"
	SpotPapelillo      = "Papelillo"
	SpotPapelilloRisco = "Papelillo - Bajo el Risco"
	SpotCaletaCaballo  = "Caleta Caballo"
	SpotFamara         = "Famara"
	SpotElEspino       = "El Espino"
	SpotElCartel       = "El Cartel"
	SpotLaSanta        = "La Santa"
	SpotSanJuan        = "San Juan - Cagao - El Muelle"
)

// LowWindThreshold separates the low-wind rule set (strictly below) from the
// high-wind one, in knots.
const LowWindThreshold = 10.0

type dirSet []string

// tideBound partitions by tide percentage: emptying is <= 50, filling is > 50.
type tideBound int

const (
	anyTide tideBound = iota
	emptying
	filling
)

// condition is a conjunction; zero-valued fields do not constrain.
// Directions match if either the instantaneous or predominant reading is in
// the set and neither is in the matching except set.
type condition struct {
	wind       dirSet
	wave       dirSet
	waveExcept dirSet

	minEnergy   int     // energy >= minEnergy
	minPeriod   int     // wave_period >= minPeriod
	heightAbove float64 // wave_height > heightAbove
	tide        tideBound
}

type rule struct {
	spot string
	cond condition
}

// reading holds the normalized fields a rule looks at.
type reading struct {
	windInst, windPred string
	waveInst, wavePred string
	windSpeed          float64
	waveHeight         float64
	wavePeriod         int
	energy             int
	tidePercentage     int
}

func (s dirSet) matches(inst, pred string) bool {
	return slices.Contains(s, inst) || slices.Contains(s, pred)
}

func (c condition) matches(r reading) bool {
	if c.wind != nil && !c.wind.matches(r.windInst, r.windPred) {
		return false
	}
	if c.wave != nil && !c.wave.matches(r.waveInst, r.wavePred) {
		return false
	}
	if c.waveExcept != nil && c.waveExcept.matches(r.waveInst, r.wavePred) {
		return false
	}
	if r.energy < c.minEnergy || r.wavePeriod < c.minPeriod {
		return false
	}
	if c.heightAbove > 0 && !(r.waveHeight > c.heightAbove) {
		return false
	}
	switch c.tide {
	case emptying:
		return r.tidePercentage <= 50
	case filling:
		return r.tidePercentage > 50
	}
	return true
}

var (
	northEastWind   = dirSet{"N", "NNE", "NE", "ENE", "E"}
	northWave       = dirSet{"N", "NNE", "NE"}
	northWestWind   = dirSet{"N", "NNW", "NW", "WNW", "W"}
	eastWave        = dirSet{"NE", "ENE", "E"}
	westSwell       = dirSet{"NW", "WNW", "W"}
	northWestSwell  = dirSet{"N", "NNW", "NW", "WNW"}
	southWind       = dirSet{"S", "SSE", "SSW", "SE", "SW"}
	northNorthSwell = dirSet{"N", "NNE", "NNW"}
	bigWaveDirs     = dirSet{"N", "NNE", "NE", "ENE", "E"}
)

// highWindRules is evaluated in order when wind_speed >= LowWindThreshold.
var highWindRules = []rule{
	{SpotBarcarola, condition{wind: northEastWind, wave: northWave, minEnergy: 200, tide: emptying}},
	{SpotBastian, condition{wind: northEastWind, wave: northWave, minEnergy: 200, tide: filling}},
	{SpotPuntaMujeres, condition{wind: northWestWind, wave: eastWave, minEnergy: 150}},
	{SpotTiburonEspino, condition{wind: dirSet{"N", "NNW", "NW", "WNW"}, wave: westSwell, minEnergy: 800, minPeriod: 12}},
	{SpotPosibleTiburon, condition{wind: dirSet{"NNE", "NE"}, wave: westSwell, minEnergy: 800, minPeriod: 12}},
	{SpotPapagayo, condition{wind: dirSet{"NE", "ENE", "E"}, wave: dirSet{"NW", "WNW"}, minEnergy: 300, minPeriod: 12}},
	{SpotBajoElRisco, condition{wind: dirSet{"S", "SSW", "SW"}, wave: northWestSwell, minEnergy: 1000}},
	{SpotPapelillo, condition{wind: dirSet{"E", "ESE", "SE", "SSE"}, wave: westSwell, minEnergy: 50, minPeriod: 10}},
	{SpotCaletaCaballo, condition{wind: dirSet{"W", "WSW", "SW"}, wave: dirSet{"N", "NNE", "NNW", "NW"}, waveExcept: dirSet{"NE"}, minEnergy: 80}},
	{SpotFamara, condition{wind: southWind, wave: northWestSwell, waveExcept: dirSet{"W"}, minEnergy: 100, minPeriod: 8}},
	{SpotElEspino, condition{wind: dirSet{"NW", "WNW", "NNW"}, wave: northWestSwell, minEnergy: 200, tide: filling}},
	{SpotElCartel, condition{wind: dirSet{"NW", "WNW", "NNW"}, wave: northWestSwell, minEnergy: 200, tide: emptying}},
	{SpotLaSanta, condition{wind: dirSet{"E", "ENE", "ESE", "SE"}, wave: dirSet{"N", "NNW", "NNE"}, minEnergy: 400, minPeriod: 11}},
	{SpotSanJuan, condition{wind: dirSet{"S", "SSW", "SW", "SE"}, wave: northWestSwell, minEnergy: 50}},
}

// lowWindRules is evaluated in order when wind_speed < LowWindThreshold.
// After the wind-specific rules, spots fall back to their wave-only condition.
var lowWindRules = []rule{
	{SpotBigWaves, condition{wave: bigWaveDirs, heightAbove: 2.5}},
	{SpotCaletaCaballo, condition{wind: dirSet{"W", "WSW", "WNW", "SW", "NW"}, wave: northNorthSwell, minEnergy: 80}},
	{SpotPapelilloRisco, condition{wind: dirSet{"S", "SSE", "SE", "SSW"}, wave: dirSet{"NW", "WNW"}, minEnergy: 250, minPeriod: 11}},
	{SpotTiburonEspino, condition{wave: westSwell, minEnergy: 800, minPeriod: 12}},
	{SpotSanJuan, condition{wave: northWestSwell, minEnergy: 150}},
	{SpotBarcarola, condition{wave: northWave, minEnergy: 200, tide: emptying}},
	{SpotBastian, condition{wave: northWave, minEnergy: 200, tide: filling}},
	{SpotPuntaMujeres, condition{wave: eastWave, minEnergy: 150}},
	{SpotPapagayo, condition{wave: westSwell, minEnergy: 300, minPeriod: 12}},
	{SpotFamara, condition{wave: northWestSwell, minEnergy: 100}},
	{SpotCaletaCaballo, condition{wave: dirSet{"N", "NNE", "NNW", "NW"}, minEnergy: 80}},
	{SpotLaSanta, condition{wave: northNorthSwell, minEnergy: 60}},
}

// Classifier picks the spot that works best for a forecast record. It is
// stateless and safe for concurrent use.
type Classifier struct {
	low  []rule
	high []rule
}

// NewClassifier returns a Classifier with the tuned Lanzarote rule sets.
func NewClassifier() *Classifier {
	return &Classifier{low: lowWindRules, high: highWindRules}
}

// Classify returns the first matching spot of the regime selected by the
// record's wind speed, or SpotUnclassified.
func (c *Classifier) Classify(r ForecastRecord) string {
	in := reading{
		windInst:       NormalizeCompass(r.WindDirection),
		windPred:       NormalizeCompass(r.WindDirectionPredominant),
		waveInst:       NormalizeCompass(r.WaveDirection),
		wavePred:       NormalizeCompass(r.WaveDirectionPredominant),
		windSpeed:      r.WindSpeed,
		waveHeight:     r.WaveHeight,
		wavePeriod:     r.WavePeriod,
		energy:         r.Energy,
		tidePercentage: r.TidePercentage,
	}

	rules := c.high
	if in.windSpeed < LowWindThreshold {
		rules = c.low
	}
	for _, rl := range rules {
		if rl.cond.matches(in) {
			return rl.spot
		}
	}
	return SpotUnclassified
}

// Apply classifies r and overwrites its SpotName.
func (c *Classifier) Apply(r *ForecastRecord) string {
	r.SpotName = c.Classify(*r)
	return r.SpotName
}
