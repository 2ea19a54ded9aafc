// Package polyline implements Google's encoded polyline algorithm
// (5-bit chunked, zigzag-signed deltas at 1e-5 precision).
package polyline

import (
	"math"

	"ambutrack/internal/domain"
)

// Decode decodes an encoded polyline into an ordered coordinate sequence.
// An empty input yields nil.
func Decode(encoded string) []domain.Coordinate {
	if encoded == "" {
		return nil
	}
	var coords []domain.Coordinate
	index := 0
	lat := 0
	lng := 0
	for index < len(encoded) {
		latDelta, next := decodeValue(encoded, index)
		index = next
		lat += latDelta

		lngDelta, next := decodeValue(encoded, index)
		index = next
		lng += lngDelta

		coords = append(coords, domain.Coordinate{
			Lat: float64(lat) / 1e5,
			Lng: float64(lng) / 1e5,
		})
	}
	return coords
}

// Encode encodes an ordered coordinate sequence into a polyline string.
func Encode(coords []domain.Coordinate) string {
	if len(coords) == 0 {
		return ""
	}
	encoded := make([]byte, 0, len(coords)*4)
	prevLat := 0
	prevLng := 0
	for _, c := range coords {
		lat := int(math.Round(c.Lat * 1e5))
		lng := int(math.Round(c.Lng * 1e5))
		encoded = encodeValue(encoded, lat-prevLat)
		encoded = encodeValue(encoded, lng-prevLng)
		prevLat = lat
		prevLng = lng
	}
	return string(encoded)
}

func decodeValue(encoded string, index int) (int, int) {
	shift := 0
	result := 0
	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}
	if result&1 != 0 {
		return ^(result >> 1), index
	}
	return result >> 1, index
}

func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}
	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}
