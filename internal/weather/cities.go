package weather

// DefaultLocations is the monitored-city list used for heat alerts when none is configured.
var DefaultLocations = []Location{
	{Name: "Phoenix, AZ", Lat: 33.4484, Lon: -112.0740},
	{Name: "Lahore, Pakistan", Lat: 31.5204, Lon: 74.3587},
	{Name: "Baghdad, Iraq", Lat: 33.3152, Lon: 44.3661},
}
