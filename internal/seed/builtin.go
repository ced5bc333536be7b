package seed

import "time"

// BuiltIn returns predefined demo fixtures.
func BuiltIn() map[string]Fixture {
	return map[string]Fixture{
		"vineyard": {
			Name:        "Vineyard",
			Description: "Two quadcopters mapping the terraced vineyards north of Krems.",
			Drones: []Drone{
				{Key: "falcon", Name: "Falcon", SerialNumber: "VY-0001", Model: "quad-x", BatteryLevel: 92, MaxFlightTime: 40,
					Location: &Location{Lng: 15.605, Lat: 48.418, Name: "Krems depot"}},
				{Key: "kestrel", Name: "Kestrel", SerialNumber: "VY-0002", Model: "quad-x", BatteryLevel: 78, MaxFlightTime: 35},
			},
			Missions: []Mission{
				{Name: "Upper terraces", Drone: "falcon", Pattern: "grid", Altitude: 60, Speed: 8,
					StartOffset: -2 * time.Hour, DurationMinutes: 25, Status: "completed",
					Polygon: [][2]float64{{15.600, 48.420}, {15.600, 48.426}, {15.610, 48.426}, {15.610, 48.420}}},
				{Name: "Lower terraces", Drone: "falcon", Pattern: "crosshatch", Altitude: 45, Speed: 6,
					StartOffset: -10 * time.Minute, DurationMinutes: 30, Status: "in-progress",
					Polygon: [][2]float64{{15.600, 48.412}, {15.600, 48.418}, {15.612, 48.418}, {15.612, 48.412}}},
				{Name: "Cellar roofs", Drone: "kestrel", Pattern: "perimeter", Altitude: 40, Speed: 5,
					StartOffset: 3 * time.Hour, DurationMinutes: 15,
					Polygon: [][2]float64{{15.596, 48.414}, {15.596, 48.416}, {15.599, 48.416}, {15.599, 48.414}}},
			},
		},
		"solar-farm": {
			Name:        "Solar farm",
			Description: "Panel inspection over a ground-mounted solar park.",
			Drones: []Drone{
				{Key: "heron", Name: "Heron", SerialNumber: "SF-0100", Model: "fixed-wing-s", BatteryLevel: 100, MaxFlightTime: 90},
			},
			Missions: []Mission{
				{Name: "Array A thermal", Drone: "heron", Pattern: "grid", Altitude: 80, Speed: 12,
					StartOffset: -26 * time.Hour, DurationMinutes: 40, Status: "aborted",
					Polygon: [][2]float64{{16.840, 47.900}, {16.840, 47.906}, {16.852, 47.906}, {16.852, 47.900}}},
				{Name: "Array A thermal (retry)", Drone: "heron", Pattern: "grid", Altitude: 80, Speed: 12,
					StartOffset: 30 * time.Minute, DurationMinutes: 40,
					Polygon: [][2]float64{{16.840, 47.900}, {16.840, 47.906}, {16.852, 47.906}, {16.852, 47.900}}},
			},
		},
	}
}
