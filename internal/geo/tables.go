package geo

// UnknownContinent is returned for country codes missing from the table.
const UnknownContinent = "Unknown"

var continents = map[string]string{
	"US": "North America",
	"CA": "North America",
	"MX": "North America",
	"GB": "Europe",
	"DE": "Europe",
	"FR": "Europe",
	"NL": "Europe",
	"ES": "Europe",
	"IT": "Europe",
	"AT": "Europe",
	"CZ": "Europe",
	"IN": "Asia",
	"CN": "Asia",
	"JP": "Asia",
	"AU": "Oceania",
	"NZ": "Oceania",
	"BR": "South America",
	"JM": "Caribbean",
}

var countryNames = map[string]string{
	"US": "United States",
	"CA": "Canada",
	"MX": "Mexico",
	"GB": "United Kingdom",
	"DE": "Germany",
	"FR": "France",
	"NL": "Netherlands",
	"ES": "Spain",
	"IT": "Italy",
	"AU": "Australia",
	"IN": "India",
	"JM": "Jamaica",
}

// Continent maps an ISO country code to its continent, or UnknownContinent.
func Continent(code string) string {
	if c, ok := continents[code]; ok {
		return c
	}
	return UnknownContinent
}

// CountryName maps an ISO country code to a display name. Unknown codes are
// returned unchanged.
func CountryName(code string) string {
	if n, ok := countryNames[code]; ok {
		return n
	}
	return code
}
