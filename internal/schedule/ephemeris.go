package schedule

import (
	"fmt"
	"math"
	"time"
)

// nightCivilNoon parses a "YYYY-MM-DD" night identifier into the UTC civil
// noon that begins that observing night, matching the reference's
// noon-to-noon convention.
func nightCivilNoon(night string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", night)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s is not a valid date", night)
	}
	return d.Add(12 * time.Hour).UTC(), nil
}

// NightStartEnd computes the first/last UTC times on the observing night
// identified by `night` where the sun crosses below sunAltitudeLimit degrees,
// searching from civil noon on `night` to civil noon the following day.
//
// If the sun never rises above the limit during the search window, the
// entire window counts as night (start, end = window bounds). If it never
// sets below the limit, the result is an empty interval (start == end).
func NightStartEnd(night string, latDeg, lonDeg, sunAltitudeLimit float64) (time.Time, time.Time, error) {
	windowStart, err := nightCivilNoon(night)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	windowEnd := windowStart.Add(24 * time.Hour)

	const step = time.Minute
	type sample struct {
		t   time.Time
		alt float64
	}

	samples := make([]sample, 0, int(24*time.Hour/step)+1)
	for t := windowStart; !t.After(windowEnd); t = t.Add(step) {
		samples = append(samples, sample{t: t, alt: sunAltitudeDeg(t, latDeg, lonDeg) - sunAltitudeLimit})
	}

	var crossings []time.Time
	for i := 1; i < len(samples); i++ {
		a, b := samples[i-1], samples[i]
		if (a.alt > 0) == (b.alt > 0) {
			continue
		}
		crossings = append(crossings, bisectCrossing(a.t, b.t, latDeg, lonDeg, sunAltitudeLimit))
		if len(crossings) == 2 {
			break
		}
	}

	switch len(crossings) {
	case 0:
		mid := samples[len(samples)/2]
		if mid.alt > 0 {
			// Sun never sets below the limit (e.g. polar day).
			return windowStart, windowStart, nil
		}
		// Sun never rises above the limit (e.g. polar night).
		return windowStart, windowEnd, nil
	case 1:
		// A single crossing inside the window is an edge case the search
		// step can't disambiguate further; treat the window as open from
		// the crossing to the window end.
		return crossings[0], windowEnd, nil
	default:
		return crossings[0], crossings[1], nil
	}
}

// bisectCrossing refines a sign-change of (altitude - limit) found between
// two one-minute samples down to roughly one-second precision.
func bisectCrossing(lo, hi time.Time, latDeg, lonDeg, limit float64) time.Time {
	loAlt := sunAltitudeDeg(lo, latDeg, lonDeg) - limit
	for i := 0; i < 20 && hi.Sub(lo) > time.Second; i++ {
		mid := lo.Add(hi.Sub(lo) / 2)
		midAlt := sunAltitudeDeg(mid, latDeg, lonDeg) - limit
		if (midAlt > 0) == (loAlt > 0) {
			lo = mid
			loAlt = midAlt
		} else {
			hi = mid
		}
	}
	return lo.Add(hi.Sub(lo) / 2).Truncate(time.Second)
}

// sunAltitudeDeg returns the sun's altitude in degrees above the horizon at
// time t, for an observer at (latDeg, lonDeg), using the low-precision solar
// position formulas from the Astronomical Almanac (accurate to roughly 0.01
// degrees, well within the needs of night-boundary scheduling).
func sunAltitudeDeg(t time.Time, latDeg, lonDeg float64) float64 {
	jd := julianDay(t)
	n := jd - 2451545.0

	meanLon := norm360(280.460 + 0.9856474*n)
	meanAnomaly := deg2rad(norm360(357.528 + 0.9856003*n))

	eclipticLon := deg2rad(meanLon + 1.915*math.Sin(meanAnomaly) + 0.020*math.Sin(2*meanAnomaly))
	obliquity := deg2rad(23.439 - 0.0000004*n)

	sinDec := math.Sin(obliquity) * math.Sin(eclipticLon)
	dec := math.Asin(sinDec)

	ra := math.Atan2(math.Cos(obliquity)*math.Sin(eclipticLon), math.Cos(eclipticLon))

	gmstHours := norm24(18.697374558 + 24.06570982441908*n)
	lstHours := norm24(gmstHours + lonDeg/15.0)
	hourAngle := deg2rad(lstHours*15.0) - ra

	lat := deg2rad(latDeg)
	sinAlt := math.Sin(lat)*math.Sin(dec) + math.Cos(lat)*math.Cos(dec)*math.Cos(hourAngle)
	return rad2deg(math.Asin(clamp(sinAlt, -1, 1)))
}

func julianDay(t time.Time) float64 {
	u := t.UTC()
	return float64(u.Unix())/86400.0 + 2440587.5
}

func norm360(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func norm24(h float64) float64 {
	h = math.Mod(h, 24)
	if h < 0 {
		h += 24
	}
	return h
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
