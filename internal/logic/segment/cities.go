package segment

// City lists are matched as case-insensitive substrings of the visitor's city.

var techHubCities = []string{
	"San Francisco",
	"San Jose",
	"Palo Alto",
	"Mountain View",
	"New York",
	"Brooklyn",
	"Austin",
	"Seattle",
	"Boston",
	"Los Angeles",
	"Denver",
	"Portland",
	"Chicago",
	"Atlanta",
	"Raleigh",
	"Durham",
}

var dcMetroCities = []string{
	"Washington",
	"Arlington",
	"Alexandria",
	"Fairfax",
	"Reston",
	"McLean",
	"Tysons",
	"Bethesda",
	"Rockville",
	"Silver Spring",
	"College Park",
	"Herndon",
	"Falls Church",
	"Vienna",
	"Ashburn",
}

// DrupalCon and camp host cities, including European ones.
var drupalConferenceCities = []string{
	"Portland",
	"Nashville",
	"Pittsburgh",
	"Minneapolis",
	"Denver",
	"Vienna",
	"Barcelona",
	"Amsterdam",
	"Prague",
	"Lille",
}

var healthcareHubs = []string{
	"Boston",
	"St. Louis",
	"Minneapolis",
	"Houston",
	"Cleveland",
	"Rochester",
	"Nashville",
	"Philadelphia",
	"Baltimore",
}

// localRegions are compared exactly, case included.
var localRegions = []string{"VA", "MD", "DC"}
