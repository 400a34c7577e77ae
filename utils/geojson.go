package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/twpayne/go-geom/encoding/geojson"
)

func readGeoJSON(path string) (*FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var collection geojson.FeatureCollection
	if err := json.Unmarshal(data, &collection); err != nil {
		return nil, fmt.Errorf("failed to parse feature collection: %w", err)
	}

	fc := &FeatureCollection{}
	schema := make(map[string]interface{})
	for _, feature := range collection.Features {
		properties := feature.Properties
		if properties == nil {
			properties = make(map[string]interface{})
		}
		for key, value := range properties {
			// GeoJSON numbers decode as float64; whole numbers become integer fields
			if f, ok := value.(float64); ok && f == float64(int64(f)) {
				properties[key] = int(f)
			}
			if _, seen := schema[key]; !seen && properties[key] != nil {
				schema[key] = properties[key]
			}
		}
		fc.Features = append(fc.Features, Feature{Geom: feature.Geometry, Properties: properties})
	}

	keys := make([]string, 0, len(schema))
	for key := range schema {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fc.Fields = CreateFieldsFromProperties(schema, keys)

	return fc, nil
}

func writeGeoJSON(path string, fc *FeatureCollection) error {
	collection := geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(fc.Features)),
	}
	for _, feature := range fc.Features {
		collection.Features = append(collection.Features, &geojson.Feature{
			Geometry:   feature.Geom,
			Properties: feature.Properties,
		})
	}

	jsonFC, err := json.Marshal(&collection)
	if err != nil {
		return fmt.Errorf("failed to marshal feature collection: %w", err)
	}
	if err := os.WriteFile(path, jsonFC, 0644); err != nil {
		return fmt.Errorf("error saving JSON file: %w", err)
	}
	return nil
}
