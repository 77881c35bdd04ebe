package assessment

// instrument describes one recognised questionnaire. Responses are keyed by
// key; the summed item values are reported under category.
type instrument struct {
	key            string
	category       string
	recommendation string
}

// instruments is ordered: recommendations are emitted in this order.
var instruments = []instrument{
	{
		key:            "phq9",
		category:       "depression",
		recommendation: "Consider speaking with a mental health professional about depression",
	},
	{
		key:            "gad7",
		category:       "anxiety",
		recommendation: "Consider anxiety management techniques or professional help",
	},
}

// immediateSupport is appended after the per-instrument lines when the
// overall risk is high.
const immediateSupport = "Please consider reaching out for immediate support"

func lookup(key string) (instrument, bool) {
	for _, in := range instruments {
		if in.key == key {
			return in, true
		}
	}
	return instrument{}, false
}
