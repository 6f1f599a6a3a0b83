package judge0_client

const (
	BaseURL = "https://judge0-ce.p.rapidapi.com"

	RapidAPIKeyHeader  = "X-RapidAPI-Key"
	RapidAPIHostHeader = "X-RapidAPI-Host"
	RapidAPIHost       = "judge0-ce.p.rapidapi.com"

	// Synchronous submission; the response carries the run result.
	SubmissionsEndpoint = "/submissions?base64_encoded=false&wait=true"
)

// languageIDs maps the editor language names to Judge0 language ids.
var languageIDs = map[string]int{
	"c":      48,
	"cpp":    53,
	"c++":    53,
	"java":   62,
	"python": 71,
}

// LanguageID returns the Judge0 id for language.
func LanguageID(language string) (int, bool) {
	id, ok := languageIDs[language]
	return id, ok
}
