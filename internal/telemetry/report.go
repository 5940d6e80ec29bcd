package telemetry

import (
	"encoding/csv"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// MeteringReading is one row of a MeteringReport: the validated subset of
// a Reading's fields, with Quality dropped since every surviving reading
// is Good by construction.
type MeteringReading struct {
	Name  string  `json:"reading_name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// MeteringReport is the valid-only projection of one device's readings.
type MeteringReport struct {
	Timestamp    time.Time         `json:"timestamp"`
	DeviceID     string            `json:"device_id"`
	Manufacturer string            `json:"manufacturer"`
	Readings     []MeteringReading `json:"readings"`
}

// JSON serializes the report to compact JSON.
func (r MeteringReport) JSON() ([]byte, error) {
	return json.Marshal(r)
}

// CSV serializes the report to the fixed schema
// timestamp,device_id,manufacturer,reading_name,value,unit, one row per
// reading.
func (r MeteringReport) CSV() (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write([]string{"timestamp", "device_id", "manufacturer", "reading_name", "value", "unit"}); err != nil {
		return "", err
	}
	ts := r.Timestamp.UTC().Format(time.RFC3339)
	for _, reading := range r.Readings {
		row := []string{
			ts,
			r.DeviceID,
			r.Manufacturer,
			reading.Name,
			strconv.FormatFloat(reading.Value, 'f', -1, 64),
			reading.Unit,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func toMeteringReadings(readings []Reading) []MeteringReading {
	out := make([]MeteringReading, len(readings))
	for i, r := range readings {
		out[i] = MeteringReading{Name: r.Name, Value: r.Value, Unit: r.Unit}
	}
	return out
}
