package parse

import (
	"math"
	"net/url"
	"regexp"
	"strconv"

	"placeharvest/internal/domain"
)

const num = `(-?\d+(?:\.\d+)?)`

// coordPatterns are tried in order for every source; the first valid match wins.
var coordPatterns = []*regexp.Regexp{
	regexp.MustCompile(`!3d` + num + `!4d` + num),
	regexp.MustCompile(`@` + num + `,\s*` + num + `,`),
	regexp.MustCompile(`[?&]q=` + num + `,\s*` + num),
	regexp.MustCompile(`[?&]center=` + num + `,\s*` + num),
	regexp.MustCompile(`[?&]ll=` + num + `,\s*` + num),
}

// ResolveCoords returns the first valid latitude/longitude pair found in
// sources, which are consulted in order (page URL, preview image URL, links).
func ResolveCoords(sources ...string) (domain.Coords, bool) {
	for _, src := range sources {
		if c, ok := coordsFrom(src); ok {
			return c, true
		}
	}
	return domain.Coords{}, false
}

func coordsFrom(src string) (domain.Coords, bool) {
	if src == "" {
		return domain.Coords{}, false
	}
	if u, err := url.QueryUnescape(src); err == nil {
		src = u
	}
	for _, re := range coordPatterns {
		for _, m := range re.FindAllStringSubmatch(src, -1) {
			if c, ok := validPair(m[1], m[2]); ok {
				return c, true
			}
		}
	}
	return domain.Coords{}, false
}

func validPair(latS, lonS string) (domain.Coords, bool) {
	lat, err1 := strconv.ParseFloat(latS, 64)
	lon, err2 := strconv.ParseFloat(lonS, 64)
	if err1 != nil || err2 != nil {
		return domain.Coords{}, false
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return domain.Coords{}, false
	}
	return domain.Coords{Lat: lat, Lon: lon}, true
}
