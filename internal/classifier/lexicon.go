package classifier

import (
	"regexp"
	"sort"
	"strings"
)

// Personal consumption that is never wholly and exclusively for a project.
var privateTerms = []string{
	"entertainment", "vacation", "holiday", "shopping", "subscription",
	"netflix", "dstv", "showmax", "spotify", "cinema", "movie", "party",
	"birthday", "wedding", "gift", "jewelry", "jewellery", "clothes",
	"clothing", "fashion", "shoes", "spa", "salon", "gym", "alcohol",
	"beer", "drinks", "nightclub", "club", "concert", "betting", "casino",
	"gaming", "playstation", "school fees", "tuition", "personal",
	"groceries", "pocket money",
}

// Costs that can be legitimate but need documentation.
var grayTerms = []string{
	"fuel", "petrol", "diesel", "food", "meal", "lunch", "dinner",
	"transport", "transportation", "taxi", "uber", "bolt", "bus", "okada",
	"phone", "airtime", "data", "recharge", "internet", "accommodation",
	"hotel", "lodging", "travel", "flight",
}

// Strong on-topic terms: materials, trades and named project inputs.
var constructionTerms = []string{
	"cement", "sand", "gravel", "granite", "blocks", "block", "bricks",
	"brick", "rods", "iron rod", "reinforcement", "steel", "roofing",
	"roof", "timber", "wood", "planks", "plank", "tiles", "tile", "paint",
	"plumbing", "plumber", "pipes", "electrician", "wiring", "cables",
	"mason", "bricklayer", "carpenter", "carpentry", "welder", "welding",
	"labour", "labor", "foundation", "concrete", "excavation", "architect",
	"surveyor", "building permit", "building materials", "materials",
	"nails", "doors", "windows", "plastering", "plaster", "borehole",
	"site", "construction",
}

// Catch-all descriptions that hide what was bought.
var vagueTerms = []string{
	"misc", "miscellaneous", "sundry", "sundries", "other", "others",
	"general", "various", "stuff",
}

// lexicon matches whole words (allowing a plural s) case-insensitively.
type lexicon struct {
	re *regexp.Regexp
}

func newLexicon(terms []string) lexicon {
	sorted := append([]string(nil), terms...)
	// Longest first so multi-word phrases win over their prefixes.
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	quoted := make([]string, len(sorted))
	for i, t := range sorted {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return lexicon{re: regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)s?\b`)}
}

// matches returns the distinct terms found in text, lowercased, in order of
// first appearance.
func (l lexicon) matches(text string) []string {
	found := l.re.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(found))
	out := make([]string, 0, len(found))
	for _, f := range found {
		f = strings.ToLower(f)
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func (l lexicon) any(text string) bool {
	return l.re.MatchString(text)
}

var (
	privateLexicon      = newLexicon(privateTerms)
	grayLexicon         = newLexicon(grayTerms)
	constructionLexicon = newLexicon(constructionTerms)
	vagueLexicon        = newLexicon(vagueTerms)
)
