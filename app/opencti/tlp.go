package opencti

import "strings"

const DefaultTLP = "TLP:GREEN"

var tlpRank = map[string]int{
	"TLP:CLEAR":        0,
	"TLP:WHITE":        0,
	"TLP:GREEN":        1,
	"TLP:AMBER":        2,
	"TLP:AMBER+STRICT": 3,
	"TLP:RED":          4,
}

// CheckMaxTLP reports whether data marked tlp may be shared by a connector
// allowed up to maxTLP. Unknown markings are never allowed.
func CheckMaxTLP(tlp, maxTLP string) bool {
	rank, ok := tlpRank[strings.ToUpper(tlp)]
	if !ok {
		return false
	}
	maxRank, ok := tlpRank[strings.ToUpper(maxTLP)]
	if !ok {
		return false
	}
	return rank <= maxRank
}

func ValidTLP(tlp string) bool {
	_, ok := tlpRank[strings.ToUpper(tlp)]
	return ok
}
