package analyzer

import (
	"strings"

	"github.com/tommynabo/TalentScope-sub000/internal/domain"
)

// DefaultSpanishConfidence is the threshold used when the criteria sets none
const DefaultSpanishConfidence = 30

var spanishLocations = []string{
	"spain", "españa", "espana", "mexico", "méxico", "argentina", "colombia", "chile", "peru", "perú",
	"venezuela", "ecuador", "guatemala", "cuba", "bolivia", "dominican", "honduras", "paraguay",
	"el salvador", "nicaragua", "costa rica", "panama", "panamá", "uruguay", "puerto rico",
	"madrid", "barcelona", "valencia", "sevilla", "seville", "bilbao", "málaga", "malaga", "zaragoza",
	"cdmx", "guadalajara", "monterrey", "buenos aires", "córdoba", "bogotá", "bogota", "medellín",
	"medellin", "santiago", "lima", "caracas", "quito", "montevideo", "asunción", "la paz",
}

var spanishBioIndicators = []string{
	"español", "espanol", "spanish", "hispano", "hispanic", "latam", "latinoamérica", "latinoamerica",
	"hablo", "nativo", "castellano",
}

var spanishWords = []string{
	"desarrollador", "desarrolladora", "programador", "programadora", "ingeniero", "ingeniera",
	"apasionado", "apasionada", "aprendiendo", "tecnología", "software libre", "trabajo", "proyectos",
	" de ", " y ", " en ", " con ",
}

var spanishCompanyHints = []string{" s.a.", " s.l.", " sa de cv", "españa", "mexico", "méxico", "latam", "argentina", "colombia"}

// SpanishConfidence scores, from 0 to 100, how likely the profile owner
// speaks Spanish, using location, bio and company text.
func SpanishConfidence(a *domain.Account) int {
	score := 0

	location := strings.ToLower(a.Location)
	if containsAny(location, spanishLocations) {
		score += 50
	}

	bio := " " + strings.ToLower(a.Bio) + " "
	score += min(40, 15*countMatches(bio, spanishBioIndicators))
	score += min(20, 5*countMatches(bio, spanishWords))

	company := " " + strings.ToLower(a.Company) + " "
	if containsAny(company, spanishCompanyHints) {
		score += 15
	}

	return min(100, score)
}

func containsAny(s string, needles []string) bool {
	return countMatches(s, needles) > 0
}

func countMatches(s string, needles []string) int {
	n := 0
	for _, k := range needles {
		if strings.Contains(s, k) {
			n++
		}
	}
	return n
}
