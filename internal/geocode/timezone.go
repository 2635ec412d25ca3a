package geocode

import (
	"fmt"

	"github.com/ringsaturn/tzf"
)

// TimezoneResolver maps coordinates to an IANA zone name. An empty string
// means no zone could be determined.
type TimezoneResolver interface {
	TimezoneAt(lat, lon float64) string
}

// TZF resolves timezones offline from embedded polygon data.
type TZF struct {
	finder tzf.F
}

func NewTZF() (*TZF, error) {
	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, fmt.Errorf("init timezone finder: %w", err)
	}
	return &TZF{finder: finder}, nil
}

func (t *TZF) TimezoneAt(lat, lon float64) string {
	return t.finder.GetTimezoneName(lon, lat)
}
