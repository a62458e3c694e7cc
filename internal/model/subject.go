package model

// Subject enumerates the EASA theory examination subjects.
type Subject string

const (
	SubjectAirLaw             Subject = "Air Law"
	SubjectAircraftGeneral    Subject = "Aircraft General Knowledge"
	SubjectFlightPlanning     Subject = "Flight Performance & Planning"
	SubjectHumanPerformance   Subject = "Human Performance"
	SubjectMeteorology        Subject = "Meteorology"
	SubjectNavigation         Subject = "Navigation"
	SubjectOperationalProc    Subject = "Operational Procedures"
	SubjectPrinciplesOfFlight Subject = "Principles of Flight"
	SubjectCommunications     Subject = "Communications"
)

// Subjects lists every valid subject in catalogue order.
var Subjects = []Subject{
	SubjectAirLaw,
	SubjectAircraftGeneral,
	SubjectFlightPlanning,
	SubjectHumanPerformance,
	SubjectMeteorology,
	SubjectNavigation,
	SubjectOperationalProc,
	SubjectPrinciplesOfFlight,
	SubjectCommunications,
}

// Valid reports whether s is a known subject.
func (s Subject) Valid() bool {
	for _, known := range Subjects {
		if s == known {
			return true
		}
	}
	return false
}

// Language is the session-wide language for questions and explanations.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageGerman  Language = "de"
	LanguageFrench  Language = "fr"
)

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	return l == LanguageEnglish || l == LanguageGerman || l == LanguageFrench
}
