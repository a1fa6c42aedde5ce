package extraction

import "github.com/kailas-cloud/vecgraph/internal/domain/graph"

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Trailing tokens that make a capitalized phrase an organization.
var orgSuffixes = set(
	"Inc", "Inc.", "Corp", "Corp.", "Corporation", "LLC", "Ltd", "Ltd.", "GmbH", "AG", "SA", "PLC",
	"Company", "Co", "Co.", "Group", "Labs", "Laboratories", "University", "Institute", "Foundation",
	"Bank", "Technologies", "Systems", "Partners", "Holdings", "Agency", "Association", "Society",
	"Ministry", "Department", "Council", "Committee", "Studios", "Software", "Industries", "Ventures",
)

// Trailing tokens that make a capitalized phrase an event.
var eventSuffixes = set(
	"Conference", "Summit", "War", "Festival", "Championship", "Olympics", "Expo", "Election",
	"Cup", "Games", "Revolution", "Forum", "Symposium", "Hackathon", "Awards",
)

// Known places. Multi-word names are matched as whole phrases.
var gazetteer = set(
	"Springfield", "Shelbyville",
	"Africa", "Asia", "Europe", "America", "North America", "South America", "Antarctica", "Australia", "Oceania",
	"Argentina", "Austria", "Belgium", "Brazil", "Canada", "Chile", "China", "Colombia", "Denmark", "Egypt",
	"England", "Finland", "France", "Germany", "Greece", "India", "Indonesia", "Ireland", "Israel", "Italy",
	"Japan", "Kenya", "Mexico", "Netherlands", "New Zealand", "Nigeria", "Norway", "Pakistan", "Peru",
	"Poland", "Portugal", "Russia", "Scotland", "Singapore", "South Africa", "South Korea", "Spain", "Sweden",
	"Switzerland", "Taiwan", "Thailand", "Turkey", "Ukraine", "United Kingdom", "United States", "Vietnam", "Wales",
	"Amsterdam", "Athens", "Austin", "Bangalore", "Barcelona", "Beijing", "Berlin", "Boston", "Brussels",
	"Buenos Aires", "Cairo", "Chicago", "Copenhagen", "Dallas", "Denver", "Dublin", "Dubai", "Edinburgh",
	"Frankfurt", "Geneva", "Hamburg", "Helsinki", "Hong Kong", "Houston", "Istanbul", "Jakarta", "Lagos",
	"Lisbon", "London", "Los Angeles", "Madrid", "Manchester", "Melbourne", "Miami", "Milan", "Montreal",
	"Moscow", "Mumbai", "Munich", "Nairobi", "New Delhi", "New York", "Oslo", "Paris", "Prague", "Rome",
	"San Francisco", "Santiago", "Seattle", "Seoul", "Shanghai", "Stockholm", "Sydney", "Tokyo", "Toronto",
	"Vancouver", "Vienna", "Warsaw", "Washington", "Zurich",
	"California", "Texas", "Florida", "Bavaria", "Ontario", "Quebec", "Silicon Valley",
)

// Honorifics announcing a person; dropped from the entity text.
var titles = set("Mr", "Mr.", "Mrs", "Mrs.", "Ms", "Ms.", "Dr", "Dr.", "Prof", "Prof.", "Sir", "Dame")

// Capitalized function words that never start an entity.
var stopwords = set(
	"A", "An", "The", "This", "That", "These", "Those", "It", "Its", "He", "She", "They", "We", "I", "You",
	"Our", "Their", "His", "Her", "My", "Your", "Where", "What", "Who", "Whom", "Whose", "Which", "When",
	"Why", "How", "Does", "Do", "Did", "Is", "Are", "Was", "Were", "Be", "Can", "Could", "Should", "Would",
	"Will", "In", "On", "At", "For", "From", "By", "With", "Of", "To", "And", "But", "Or", "If", "Then",
	"After", "Before", "Since", "During", "As", "So", "Yes", "No", "Not", "All", "Some", "Any", "Each",
	"Today", "Yesterday", "Tomorrow", "Here", "There", "Also", "However", "Please", "Tell", "Show", "List",
	"Find", "Give", "Me", "About", "Between",
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
	"January", "February", "March", "April", "May", "June", "July", "August", "September", "October",
	"November", "December",
)

// Lowercase connectors allowed inside a capitalized run.
var connectors = set("of", "&", "de", "del", "da", "van", "von", "der", "den", "du", "la", "le")

// Lowercase cue words hinting at the type of the phrase that follows.
var cues = map[string]graph.EntityType{
	"at":       graph.TypeOrg,
	"for":      graph.TypeOrg,
	"joined":   graph.TypeOrg,
	"acquired": graph.TypeOrg,
	"founded":  graph.TypeOrg,
	"in":       graph.TypeLocation,
	"near":     graph.TypeLocation,
}
