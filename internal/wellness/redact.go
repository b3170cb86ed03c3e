package wellness

import "regexp"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

// redactName masks contact details and card numbers in a task name before it
// leaves the process.
func redactName(name string) string {
	name = emailPattern.ReplaceAllString(name, "[email]")
	// Cards first so they are not taken for phone numbers.
	name = cardPattern.ReplaceAllString(name, "[card]")
	return phonePattern.ReplaceAllString(name, "[phone]")
}

func redactEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		e.Name = redactName(e.Name)
		out[i] = e
	}
	return out
}
