package routing

import (
	gormModels "caretransport/dispatch/internal/models/gorm"

	"github.com/twpayne/go-polyline"
)

// EncodePath encodes the coordinates of the active stops, in order, as a
// Google polyline. Stops without coordinates are skipped.
func EncodePath(active []*gormModels.RouteStop) string {
	coords := make([][]float64, 0, len(active))
	for _, s := range active {
		if s.Address.Lat == 0 && s.Address.Lng == 0 {
			continue
		}
		coords = append(coords, []float64{s.Address.Lat, s.Address.Lng})
	}
	if len(coords) == 0 {
		return ""
	}
	return string(polyline.EncodeCoords(coords))
}

// DecodePath reverses EncodePath
func DecodePath(encoded string) ([][]float64, error) {
	if encoded == "" {
		return nil, nil
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	return coords, err
}
