package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roadmate-app/navigator/internal/geo"
)

const (
	pinGeoKey     = "pins:geo"
	pinMetaPrefix = "pin:"
)

// RedisSource reads the pin store's Redis mirror: a GEO set of pin
// positions plus a metadata hash per pin. The engine never writes here;
// the pin backend owns the data.
type RedisSource struct {
	rdb *redis.Client
}

// NewRedisSource creates a source over the given client.
func NewRedisSource(rdb *redis.Client) *RedisSource {
	return &RedisSource{rdb: rdb}
}

// Nearby runs a GEO radius search and hydrates each hit from its
// metadata hash. Pins with missing or unknown metadata are skipped.
func (s *RedisSource) Nearby(ctx context.Context, center geo.Coordinate, radiusMeters float64) ([]Pin, error) {
	locations, err := s.rdb.GeoSearchLocation(ctx, pinGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  center.Lon,
			Latitude:   center.Lat,
			Radius:     radiusMeters,
			RadiusUnit: "m",
		},
		WithCoord: true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("alerts: geo search: %w", err)
	}

	pins := make([]Pin, 0, len(locations))
	for _, loc := range locations {
		meta, err := s.rdb.HGetAll(ctx, pinMetaPrefix+loc.Name).Result()
		if err != nil {
			return nil, fmt.Errorf("alerts: read pin %s: %w", loc.Name, err)
		}

		pinType := PinType(meta["type"])
		if !pinType.Valid() {
			continue
		}

		pin := Pin{
			ID:          loc.Name,
			Type:        pinType,
			Coordinate:  geo.Coordinate{Lon: loc.Longitude, Lat: loc.Latitude},
			Description: meta["description"],
		}
		if raw := meta["created_at"]; raw != "" {
			if at, err := time.Parse(time.RFC3339, raw); err == nil {
				pin.CreatedAt = at
			}
		}
		pins = append(pins, pin)
	}
	return pins, nil
}
