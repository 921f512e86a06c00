package farm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Dataset is an in-memory backing store implementing every farm source
// interface. It ships with demo data so the assistant answers out of the box.
type Dataset struct {
	mu        sync.RWMutex
	fields    []Field
	equipment []Equipment
	quotes    map[string]Quote
	forecasts map[string]Forecast
}

// NewDemoDataset returns a dataset populated with a small demo farm.
func NewDemoDataset() *Dataset {
	d := &Dataset{
		fields: []Field{
			{Name: "North Forty", Crop: "winter wheat", AreaHa: 16.2, Lat: 44.312, Lon: -96.771},
			{Name: "Creek Bottom", Crop: "soybeans", AreaHa: 9.8, Lat: 44.305, Lon: -96.742},
			{Name: "Home Quarter", Crop: "corn", AreaHa: 64.7, Lat: 44.298, Lon: -96.788},
		},
		equipment: []Equipment{
			{Name: "Deere 8R", Kind: "tractor", Status: "idle", FuelPct: 82, HoursRun: 4120.5},
			{Name: "Case 8250", Kind: "combine", Status: "in maintenance", FuelPct: 35, HoursRun: 2210.0},
			{Name: "Sprayer 412", Kind: "sprayer", Status: "working", FuelPct: 61, HoursRun: 980.2},
		},
		quotes: map[string]Quote{
			"corn":         {Crop: "corn", Price: 4.38, Currency: "USD", Unit: "bushel"},
			"soybeans":     {Crop: "soybeans", Price: 10.12, Currency: "USD", Unit: "bushel"},
			"winter wheat": {Crop: "winter wheat", Price: 5.61, Currency: "USD", Unit: "bushel"},
		},
		forecasts: make(map[string]Forecast),
	}
	return d
}

// SetForecast pins a forecast for a coordinate pair. Used by tests and by
// deployments that pre-fetch weather.
func (d *Dataset) SetForecast(lat, lon float64, f Forecast) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f.Lat, f.Lon = lat, lon
	d.forecasts[forecastKey(lat, lon)] = f
}

func (d *Dataset) ListFields(ctx context.Context) ([]Field, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out, nil
}

func (d *Dataset) GetField(ctx context.Context, name string) (*Field, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, f := range d.fields {
		if strings.EqualFold(f.Name, name) {
			field := f
			return &field, nil
		}
	}
	return nil, fmt.Errorf("unknown field %q", name)
}

// Forecast returns the pinned forecast for the coordinates, or a synthetic
// calm-weather one when nothing is pinned.
func (d *Dataset) Forecast(ctx context.Context, lat, lon float64) (*Forecast, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if f, ok := d.forecasts[forecastKey(lat, lon)]; ok {
		return &f, nil
	}
	return &Forecast{
		Lat:         lat,
		Lon:         lon,
		Summary:     "partly cloudy, no precipitation expected",
		TempC:       21.5,
		RainMM:      0,
		WindKPH:     12,
		HumidityPct: 54,
	}, nil
}

func (d *Dataset) ListEquipment(ctx context.Context) ([]Equipment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Equipment, len(d.equipment))
	copy(out, d.equipment)
	return out, nil
}

func (d *Dataset) Quote(ctx context.Context, crop string) (*Quote, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if q, ok := d.quotes[strings.ToLower(strings.TrimSpace(crop))]; ok {
		quote := q
		return &quote, nil
	}
	return nil, fmt.Errorf("no quote for %q", crop)
}

func forecastKey(lat, lon float64) string {
	return fmt.Sprintf("%.3f,%.3f", lat, lon)
}
