package weather

// conditionInfo maps a WMO weather interpretation code to the
// OpenWeatherMap-compatible icon code plus description and category.
type conditionInfo struct {
	Icon        string
	Description string
	Main        string
}

// wmoConditions covers the WMO weather interpretation codes (WW) that
// Open-Meteo emits. Unknown codes fall back via conditionFor.
var wmoConditions = map[int]conditionInfo{
	0:  {"01d", "Clear sky", "Clear"},
	1:  {"02d", "Mainly clear", "Clear"},
	2:  {"03d", "Partly cloudy", "Clouds"},
	3:  {"04d", "Overcast", "Clouds"},
	45: {"50d", "Fog", "Fog"},
	48: {"50d", "Depositing rime fog", "Fog"},
	51: {"09d", "Light drizzle", "Drizzle"},
	53: {"09d", "Moderate drizzle", "Drizzle"},
	55: {"09d", "Dense drizzle", "Drizzle"},
	56: {"09d", "Light freezing drizzle", "Drizzle"},
	57: {"09d", "Dense freezing drizzle", "Drizzle"},
	61: {"10d", "Slight rain", "Rain"},
	63: {"10d", "Moderate rain", "Rain"},
	65: {"10d", "Heavy rain", "Rain"},
	66: {"13d", "Light freezing rain", "Rain"},
	67: {"13d", "Heavy freezing rain", "Rain"},
	71: {"13d", "Slight snow fall", "Snow"},
	73: {"13d", "Moderate snow fall", "Snow"},
	75: {"13d", "Heavy snow fall", "Snow"},
	77: {"13d", "Snow grains", "Snow"},
	80: {"09d", "Slight rain showers", "Rain"},
	81: {"09d", "Moderate rain showers", "Rain"},
	82: {"09d", "Violent rain showers", "Rain"},
	85: {"13d", "Slight snow showers", "Snow"},
	86: {"13d", "Heavy snow showers", "Snow"},
	95: {"11d", "Thunderstorm", "Thunderstorm"},
	96: {"11d", "Thunderstorm with slight hail", "Thunderstorm"},
	99: {"11d", "Thunderstorm with heavy hail", "Thunderstorm"},
}

// conditionFor returns the condition mapping for a provider code. Unknown
// codes map to a generic fallback rather than failing.
func conditionFor(code int) conditionInfo {
	if info, ok := wmoConditions[code]; ok {
		return info
	}
	return conditionInfo{Icon: "03d", Description: "Unknown", Main: "Unknown"}
}
